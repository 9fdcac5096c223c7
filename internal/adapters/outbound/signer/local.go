// Package signer provides a private-key backed implementation of the
// outbound.Signer port for local tooling and tests.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/archon-research/stl-lend/internal/ports/outbound"
)

var _ outbound.Signer = (*LocalSigner)(nil)

// LocalSigner signs typed data with an in-memory secp256k1 key.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner wraps an existing private key.
func NewLocalSigner(key *ecdsa.PrivateKey) (*LocalSigner, error) {
	if key == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	return &LocalSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// NewLocalSignerFromHex parses a hex private key, with or without 0x prefix.
func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return NewLocalSigner(key)
}

// Address returns the signing account.
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTypedData hashes typedData per EIP-712 and signs the digest.
func (s *LocalSigner) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("hashing typed data: %w", err)
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("signing digest: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
