package chains

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/types"
)

func TestFormatUnits(t *testing.T) {
	oneEther, _ := new(big.Int).SetString("1500000000000000000", 10)
	require.Equal(t, "1.5", FormatUnits(oneEther, 18).String())
	require.Equal(t, "0.000001", FormatUnits(big.NewInt(1), 6).String())
	require.Equal(t, "42", FormatUnits(big.NewInt(42), 0).String())
	require.True(t, FormatUnits(nil, 18).IsZero())
}

func TestNativeBalanceNoEndpoint(t *testing.T) {
	_, err := NativeBalance(context.Background(), &types.Chain{ID: 5}, common.Address{})
	require.ErrorIs(t, err, types.ErrUnavailable)
}
