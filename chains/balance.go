package chains

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ipfs-force-community/sophon-connector/types"
)

// FormatUnits turns a base unit amount into display units of a currency with
// the given decimals.
func FormatUnits(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// NativeBalance reads the native balance of addr at the latest block, trying
// the rpc endpoints of chain in order.
func NativeBalance(ctx context.Context, chain *types.Chain, addr common.Address) (*big.Int, error) {
	if len(chain.RPC) == 0 {
		return nil, errors.Wrapf(types.ErrUnavailable, "chain %d has no rpc endpoint", chain.ID)
	}
	var lastErr error
	for _, url := range chain.RPC {
		bal, err := balanceAt(ctx, url, addr)
		if err == nil {
			return bal, nil
		}
		log.Debugf("read balance of %s from %s: %v", addr, url, err)
		lastErr = err
	}
	return nil, errors.Wrapf(types.ErrUnavailable, "read balance on chain %d: %v", chain.ID, lastErr)
}

func balanceAt(ctx context.Context, url string, addr common.Address) (*big.Int, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.BalanceAt(ctx, addr, nil)
}
