package sigverify

import (
	"context"

	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

// KeyOnlyBackend is the wallet backend for deployments without a node RPC.
// Every signer is treated as a plain key account; contract-wallet validation
// callbacks are never reachable and fail loudly if they are.
type KeyOnlyBackend struct{}

func (KeyOnlyBackend) IsContract(context.Context, id.Address) (bool, error) {
	return false, nil
}

func (KeyOnlyBackend) ValidateSignature(context.Context, id.Address, id.Hash, []byte) (bool, error) {
	return false, dErrors.New(dErrors.CodeInternal, "contract wallet validation requires a node backend")
}

func (KeyOnlyBackend) SimulateValidation(context.Context, id.Address, []byte, id.Hash, []byte) (bool, error) {
	return false, dErrors.New(dErrors.CodeInternal, "counterfactual wallet validation requires a node backend")
}
