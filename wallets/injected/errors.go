package injected

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/types"
)

// EIP-1193 and EIP-3085 error codes.
const (
	CodeUserRejected       = 4001
	CodeUnauthorized       = 4100
	CodeUnsupportedMethod  = 4200
	CodeDisconnected       = 4900
	CodeChainDisconnected  = 4901
	CodeUnrecognizedChain  = 4902
	CodeResourceUnavailble = -32002
)

type coded interface {
	ErrorCode() int
}

// mapError folds provider failures into the taxonomy so nothing
// provider-shaped leaks past the adapter.
func mapError(ctx context.Context, err error, method string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(types.ErrTimeout, "%s", method)
	}
	if types.IsRecoverable(err) {
		return err
	}

	var c coded
	if errors.As(err, &c) {
		switch c.ErrorCode() {
		case CodeUserRejected:
			return errors.Wrapf(types.ErrUserRejected, "%s: %v", method, err)
		case CodeUnauthorized, CodeUnsupportedMethod, CodeDisconnected, CodeChainDisconnected:
			return errors.Wrapf(types.ErrUnavailable, "%s: %v", method, err)
		case CodeUnrecognizedChain:
			return errors.Wrapf(types.ErrUnsupportedChain, "%s: %v", method, err)
		case CodeResourceUnavailble:
			return errors.Wrapf(types.ErrAlreadyConnecting, "%s: %v", method, err)
		}
	}
	return errors.Wrapf(types.ErrUnavailable, "%s: %v", method, err)
}

func hasCode(err error, code int) bool {
	var c coded
	return errors.As(err, &c) && c.ErrorCode() == code
}
