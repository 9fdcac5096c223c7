package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/archon-research/stl-lend/internal/ports/outbound"
	"github.com/archon-research/stl-lend/internal/services/actions"
	"github.com/archon-research/stl-lend/internal/services/position_change"
)

// plan is the JSON rendering of an action.
type plan struct {
	Status         actions.Status                  `json:"status"`
	Message        string                          `json:"message,omitempty"`
	Signatures     []signatureOutput               `json:"signatures"`
	Transactions   []transactionOutput             `json:"transactions"`
	PositionChange *position_change.PositionChange `json:"positionChange,omitempty"`
}

type signatureOutput struct {
	Name   string `json:"name"`
	Signed bool   `json:"signed"`
	Error  string `json:"error,omitempty"`
}

// transactionOutput carries the payload when it could be rendered, or the
// reason it could not (typically a missing signature).
type transactionOutput struct {
	Name  string          `json:"name"`
	To    *common.Address `json:"to,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// renderPlan signs the signature requests when a signer is available, then
// renders every transaction request in order.
func renderPlan(ctx context.Context, action *actions.Action, signer outbound.Signer) plan {
	p := plan{
		Status:         action.Status,
		Message:        action.Message,
		Signatures:     make([]signatureOutput, 0, len(action.SignatureRequests)),
		Transactions:   make([]transactionOutput, 0, len(action.TransactionRequests)),
		PositionChange: action.PositionChange,
	}
	for _, req := range action.SignatureRequests {
		out := signatureOutput{Name: req.Name}
		if signer != nil {
			if err := req.Sign(ctx, signer); err != nil {
				out.Error = err.Error()
			} else {
				out.Signed = true
			}
		}
		p.Signatures = append(p.Signatures, out)
	}
	for _, req := range action.TransactionRequests {
		out := transactionOutput{Name: req.Name}
		tx, err := req.Tx()
		if err != nil {
			out.Error = err.Error()
		} else {
			to := tx.To
			out.To = &to
			out.Data = tx.Data
			if tx.Value != nil && tx.Value.Sign() > 0 {
				out.Value = (*hexutil.Big)(tx.Value)
			}
		}
		p.Transactions = append(p.Transactions, out)
	}
	return p
}

func writePlan(ctx context.Context, w io.Writer, action *actions.Action, signer outbound.Signer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(renderPlan(ctx, action, signer)); err != nil {
		return fmt.Errorf("writing plan: %w", err)
	}
	return nil
}
