package types

import (
	"github.com/pkg/errors"
)

// Error taxonomy shared by adapters and the connection manager. Adapters wrap
// backend failures into one of these so callers only ever test with errors.Is.
var (
	ErrUserRejected      = errors.New("user rejected the request")
	ErrUnavailable       = errors.New("wallet backend unavailable")
	ErrTimeout           = errors.New("wallet backend timed out")
	ErrUnsupportedChain  = errors.New("chain not supported by wallet")
	ErrNotConnected      = errors.New("wallet not connected")
	ErrNoActiveWallet    = errors.New("no active wallet")
	ErrAlreadyConnecting = errors.New("wallet is already connecting")
)

// ErrorCode is the wire form of a taxonomy error, used in rpc responses,
// metric tags and lifecycle events.
type ErrorCode string

const (
	CodeNone              ErrorCode = ""
	CodeUserRejected      ErrorCode = "user_rejected"
	CodeUnavailable       ErrorCode = "unavailable"
	CodeTimeout           ErrorCode = "timeout"
	CodeUnsupportedChain  ErrorCode = "unsupported_chain"
	CodeNotConnected      ErrorCode = "not_connected"
	CodeNoActiveWallet    ErrorCode = "no_active_wallet"
	CodeAlreadyConnecting ErrorCode = "already_connecting"
	CodeUnknown           ErrorCode = "unknown"
)

var taxonomy = []struct {
	err  error
	code ErrorCode
}{
	{ErrUserRejected, CodeUserRejected},
	{ErrUnavailable, CodeUnavailable},
	{ErrTimeout, CodeTimeout},
	{ErrUnsupportedChain, CodeUnsupportedChain},
	{ErrNotConnected, CodeNotConnected},
	{ErrNoActiveWallet, CodeNoActiveWallet},
	{ErrAlreadyConnecting, CodeAlreadyConnecting},
}

// Classify maps err onto the taxonomy. A nil error yields CodeNone and an
// error outside the taxonomy yields CodeUnknown.
func Classify(err error) ErrorCode {
	if err == nil {
		return CodeNone
	}
	for _, t := range taxonomy {
		if errors.Is(err, t.err) {
			return t.code
		}
	}
	return CodeUnknown
}

// IsRecoverable reports whether err belongs to the taxonomy. Every taxonomy
// error can be reported to the user and retried by them.
func IsRecoverable(err error) bool {
	code := Classify(err)
	return code != CodeNone && code != CodeUnknown
}

// ErrorFromCode is the inverse of Classify, used when an error crosses the
// rpc boundary as a string code.
func ErrorFromCode(code ErrorCode, msg string) error {
	for _, t := range taxonomy {
		if t.code == code {
			if msg == "" {
				return t.err
			}
			return errors.Wrap(t.err, msg)
		}
	}
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
