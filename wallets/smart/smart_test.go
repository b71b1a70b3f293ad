package smart_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/testhelper"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
	"github.com/ipfs-force-community/sophon-connector/wallets/injected"
	"github.com/ipfs-force-community/sophon-connector/wallets/smart"
)

var (
	factory      = common.HexToAddress("0x9406Cc6185a346906296840746125a0E44976454")
	initCodeHash = crypto.Keccak256Hash([]byte("account proxy"))
)

func setup(t *testing.T, sponsored ...uint64) (*smart.Adapter, *testhelper.MemProvider, common.Address) {
	owner := testhelper.RandomAddress()
	p := testhelper.NewMemProvider(owner)
	personal := injected.New(injected.DefaultConfig(), p, nil)
	return smart.New(smart.Config{Factory: factory, InitCodeHash: initCodeHash, SponsoredChains: sponsored}, personal), p, owner
}

func TestAccountAddress(t *testing.T) {
	owner := testhelper.RandomAddress()
	addr := smart.AccountAddress(factory, initCodeHash, owner)
	require.Equal(t, addr, smart.AccountAddress(factory, initCodeHash, owner))
	require.NotEqual(t, addr, smart.AccountAddress(factory, initCodeHash, testhelper.RandomAddress()))
	require.NotEqual(t, addr, owner)

	salt := crypto.Keccak256Hash(common.LeftPadBytes(owner.Bytes(), 32))
	require.Equal(t, crypto.CreateAddress2(factory, salt, initCodeHash.Bytes()), addr)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("derives account", func(t *testing.T) {
		a, _, owner := setup(t)
		account, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.NoError(t, err)
		require.Equal(t, smart.DefaultID, account.Wallet)
		require.Equal(t, smart.AccountAddress(factory, initCodeHash, owner), account.Address)
		require.Equal(t, owner, a.Owner().Address)
		require.Equal(t, uint64(1), a.ChainID())
		require.True(t, a.Capabilities().Has(types.CapSignMessage|types.CapSwitchChain))
		require.False(t, a.Capabilities().Has(types.CapSendTransaction))
	})

	t.Run("personal rejects", func(t *testing.T) {
		a, p, _ := setup(t)
		p.Reject("eth_requestAccounts", injected.CodeUserRejected)
		_, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrUserRejected)
		require.Nil(t, a.Account())
	})

	t.Run("requested chain not sponsored", func(t *testing.T) {
		a, p, _ := setup(t, 8453)
		_, err := a.Connect(ctx, wallets.ConnectOptions{ChainID: 1})
		require.ErrorIs(t, err, types.ErrUnsupportedChain)
		require.Empty(t, p.Calls())
	})

	t.Run("personal chain not sponsored", func(t *testing.T) {
		a, p, _ := setup(t, 8453)
		_, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrUnsupportedChain)
		require.Nil(t, a.Personal().Account())
		require.Contains(t, p.Calls(), "wallet_revokePermissions")
	})

	t.Run("sponsored chain", func(t *testing.T) {
		a, _, _ := setup(t, 8453)
		_, err := a.Connect(ctx, wallets.ConnectOptions{ChainID: 8453})
		require.NoError(t, err)
		require.Equal(t, uint64(8453), a.ChainID())
	})
}

func TestSwitchChain(t *testing.T) {
	ctx := context.Background()
	a, _, _ := setup(t, 1, 137)
	require.ErrorIs(t, a.SwitchChain(ctx, 137), types.ErrNotConnected)

	_, err := a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)
	require.NoError(t, a.SwitchChain(ctx, 137))
	require.Equal(t, uint64(137), a.ChainID())
	require.ErrorIs(t, a.SwitchChain(ctx, 10), types.ErrUnsupportedChain)
	require.Equal(t, uint64(137), a.ChainID())
}

func TestEventsAreReemitted(t *testing.T) {
	ctx := context.Background()
	a, p, _ := setup(t)

	var got []types.AdapterEvent
	defer a.Subscribe(func(ev types.AdapterEvent) { got = append(got, ev) })()

	_, err := a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)

	next := testhelper.RandomAddress()
	p.SetAccounts(next)
	p.SetChain(10)
	p.Drop()

	require.Len(t, got, 3)
	require.Equal(t, smart.DefaultID, got[0].Wallet)
	require.Equal(t, smart.AccountAddress(factory, initCodeHash, next), got[0].Accounts[0].Address)
	require.Equal(t, smart.AccountAddress(factory, initCodeHash, next), a.Account().Address)
	require.Equal(t, uint64(10), got[1].ChainID)
	require.Equal(t, types.Disconnected, got[2].Type)
	require.Nil(t, a.Account())

	require.NoError(t, a.Disconnect(ctx))
	p.SetChain(1)
	require.Len(t, got, 3)
}

func TestSignMessage(t *testing.T) {
	ctx := context.Background()
	a, _, _ := setup(t)
	_, err := a.SignMessage(ctx, []byte("x"))
	require.ErrorIs(t, err, types.ErrNotConnected)

	_, err = a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)
	sig, err := a.SignMessage(ctx, []byte("x"))
	require.NoError(t, err)
	require.NotEmpty(t, sig)
}
