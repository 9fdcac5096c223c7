package entity

import "fmt"

// Block is the reference block a simulation snapshot is computed against.
type Block struct {
	Number    uint64
	Timestamp uint64
}

// NewBlock creates a new Block entity.
func NewBlock(number, timestamp uint64) (*Block, error) {
	if number == 0 {
		return nil, fmt.Errorf("block number must be positive")
	}
	if timestamp == 0 {
		return nil, fmt.Errorf("block timestamp must be positive")
	}
	return &Block{Number: number, Timestamp: timestamp}, nil
}
