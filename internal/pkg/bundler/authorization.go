package bundler

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// AuthorizationTypedData builds the EIP-712 payload Morpho verifies in
// setAuthorizationWithSig.
func AuthorizationTypedData(chainID int64, morpho common.Address, auth Authorization) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Authorization": {
				{Name: "authorizer", Type: "address"},
				{Name: "authorized", Type: "address"},
				{Name: "isAuthorized", Type: "bool"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Authorization",
		Domain: apitypes.TypedDataDomain{
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: morpho.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"authorizer":   auth.Authorizer.Hex(),
			"authorized":   auth.Authorized.Hex(),
			"isAuthorized": auth.IsAuthorized,
			"nonce":        new(big.Int).Set(auth.Nonce),
			"deadline":     new(big.Int).Set(auth.Deadline),
		},
	}
}

// SplitSignature splits a 65-byte [R || S || V] signature. V may be given as
// 0/1 or 27/28.
func SplitSignature(sig []byte) (Signature, error) {
	if len(sig) != 65 {
		return Signature{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	var out Signature
	copy(out.R[:], sig[:32])
	copy(out.S[:], sig[32:64])
	out.V = sig[64]
	if out.V < 27 {
		out.V += 27
	}
	if out.V != 27 && out.V != 28 {
		return Signature{}, fmt.Errorf("invalid signature recovery id %d", sig[64])
	}
	return out, nil
}
