// Package wallets defines the uniform surface every wallet backend is driven
// through.
package wallets

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/types"
)

// ConnectOptions tunes a single Connect call.
type ConnectOptions struct {
	// Silent forbids any user prompt. Used when restoring a connection.
	Silent bool
	// ChainID is the chain to end up on, 0 keeps the backend's current chain.
	ChainID uint64
	// SessionToken is the persisted credential of reconnect-by-credential
	// backends.
	SessionToken string
	// Strategy and Identifier select the login method of embedded wallets
	// (e.g. "email" and the address).
	Strategy   string
	Identifier string
}

// Adapter wraps one wallet backend.
//
// Connect fails with types.ErrUserRejected, types.ErrUnavailable or
// types.ErrTimeout. SwitchChain fails with types.ErrUnsupportedChain when the
// backend cannot reach the chain. Backend-initiated changes are delivered to
// Subscribe callbacks from the backend's own goroutine.
type Adapter interface {
	ID() types.WalletID
	Capabilities() types.Capabilities

	Connect(ctx context.Context, opts ConnectOptions) (*types.Account, error)
	Disconnect(ctx context.Context) error
	SwitchChain(ctx context.Context, chainID uint64) error

	Account() *types.Account
	ChainID() uint64

	Subscribe(fn func(types.AdapterEvent)) (unsubscribe func())
}

// Signer is implemented by adapters with types.CapSignMessage.
type Signer interface {
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// Transactor is implemented by adapters with types.CapSendTransaction.
type Transactor interface {
	SendTransaction(ctx context.Context, tx *types.TransactionRequest) (common.Hash, error)
}

// SessionHolder is implemented by reconnect-by-credential backends. The token
// is valid after a successful Connect and is persisted by the manager.
type SessionHolder interface {
	SessionToken() string
}

// Require returns an error unless a has every capability in want.
func Require(a Adapter, want types.Capabilities) error {
	if a.Capabilities().Has(want) {
		return nil
	}
	missing := want &^ a.Capabilities()
	if missing.Has(types.CapSwitchChain) {
		return errors.Wrapf(types.ErrUnsupportedChain, "wallet %s cannot switch chain", a.ID())
	}
	return errors.Wrapf(types.ErrUnavailable, "wallet %s lacks %s", a.ID(), missing)
}

// AsSigner returns a's Signer when it declares types.CapSignMessage.
func AsSigner(a Adapter) (Signer, error) {
	if err := Require(a, types.CapSignMessage); err != nil {
		return nil, err
	}
	s, ok := a.(Signer)
	if !ok {
		return nil, errors.Wrapf(types.ErrUnavailable, "wallet %s declares sign_message without a signer", a.ID())
	}
	return s, nil
}

// AsTransactor returns a's Transactor when it declares
// types.CapSendTransaction.
func AsTransactor(a Adapter) (Transactor, error) {
	if err := Require(a, types.CapSendTransaction); err != nil {
		return nil, err
	}
	tr, ok := a.(Transactor)
	if !ok {
		return nil, errors.Wrapf(types.ErrUnavailable, "wallet %s declares send_transaction without a transactor", a.ID())
	}
	return tr, nil
}

// WithTimeout bounds ctx by d when d is positive. Timeouts are owned by
// adapters, the manager never sets one.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// MapContextErr translates a context failure into the taxonomy.
func MapContextErr(ctx context.Context, err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(types.ErrTimeout, "%s", op)
	}
	return err
}
