package types

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	require.Equal(t, CodeNone, Classify(nil))
	require.Equal(t, CodeUnknown, Classify(fmt.Errorf("boom")))
	require.Equal(t, CodeUserRejected, Classify(errors.Wrap(ErrUserRejected, "modal closed")))
	require.Equal(t, CodeUnsupportedChain, Classify(fmt.Errorf("switch: %w", ErrUnsupportedChain)))

	require.True(t, IsRecoverable(ErrTimeout))
	require.False(t, IsRecoverable(fmt.Errorf("boom")))
	require.False(t, IsRecoverable(nil))
}

func TestErrorFromCode(t *testing.T) {
	err := ErrorFromCode(CodeAlreadyConnecting, "pending request")
	require.True(t, errors.Is(err, ErrAlreadyConnecting))
	require.Equal(t, "pending request: wallet is already connecting", err.Error())

	require.Equal(t, ErrTimeout, ErrorFromCode(CodeTimeout, ""))
	require.EqualError(t, ErrorFromCode(CodeUnknown, "boom"), "boom")
	require.NoError(t, ErrorFromCode(CodeNone, ""))
}

func TestParseChainID(t *testing.T) {
	id, err := ParseChainID("0x89")
	require.NoError(t, err)
	require.Equal(t, uint64(137), id)

	id, err = ParseChainID(" 10 ")
	require.NoError(t, err)
	require.Equal(t, uint64(10), id)

	_, err = ParseChainID("0xzz")
	require.Error(t, err)
	_, err = ParseChainID("")
	require.Error(t, err)

	require.Equal(t, "0x2105", (&Chain{ID: 8453}).IDHex())
}

func TestCapabilities(t *testing.T) {
	caps := CapGetAccounts | CapSwitchChain
	require.True(t, caps.Has(CapSwitchChain))
	require.False(t, caps.Has(CapSignMessage))
	require.False(t, caps.Has(CapSwitchChain|CapSignMessage))
	require.Equal(t, "get_accounts,switch_chain", caps.String())
}
