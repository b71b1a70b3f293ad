package api

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/types"
)

var errRelayDisabled = errors.Wrap(types.ErrUnavailable, "relay sessions are disabled")

var codes = []types.ErrorCode{
	types.CodeUserRejected,
	types.CodeUnavailable,
	types.CodeTimeout,
	types.CodeUnsupportedChain,
	types.CodeNotConnected,
	types.CodeNoActiveWallet,
	types.CodeAlreadyConnecting,
}

// EncodeError prefixes a taxonomy error with its code, e.g.
// "[not_connected] wallet injected: wallet not connected".
func EncodeError(err error) error {
	code := types.Classify(err)
	if code == types.CodeNone || code == types.CodeUnknown {
		return err
	}
	return fmt.Errorf("[%s] %s", code, err.Error())
}

// DecodeError turns an error received over rpc back into the taxonomy so
// callers can use errors.Is.
func DecodeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, code := range codes {
		tag := "[" + string(code) + "] "
		idx := strings.Index(msg, tag)
		if idx < 0 {
			continue
		}
		base := types.ErrorFromCode(code, "")
		rest := strings.TrimSuffix(msg[idx+len(tag):], ": "+base.Error())
		if rest == "" || rest == base.Error() {
			return base
		}
		return errors.Wrap(base, rest)
	}
	return err
}
