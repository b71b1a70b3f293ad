package injected_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/chains"
	"github.com/ipfs-force-community/sophon-connector/testhelper"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
	"github.com/ipfs-force-community/sophon-connector/wallets/injected"
)

func newAdapter(p *testhelper.MemProvider) *injected.Adapter {
	return injected.New(injected.DefaultConfig(), p, chains.NewRegistry())
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("interactive", func(t *testing.T) {
		addr := testhelper.RandomAddress()
		p := testhelper.NewMemProvider(addr)
		a := newAdapter(p)

		account, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.NoError(t, err)
		require.Equal(t, addr, account.Address)
		require.Equal(t, injected.DefaultID, account.Wallet)
		require.Equal(t, account, a.Account())
		require.Equal(t, uint64(1), a.ChainID())
		require.Equal(t, []string{"eth_requestAccounts", "eth_chainId"}, p.Calls())
	})

	t.Run("silent without authorization", func(t *testing.T) {
		p := testhelper.NewMemProvider()
		a := newAdapter(p)

		_, err := a.Connect(ctx, wallets.ConnectOptions{Silent: true})
		require.ErrorIs(t, err, types.ErrUserRejected)
		require.Nil(t, a.Account())
		require.Equal(t, []string{"eth_accounts"}, p.Calls())
	})

	t.Run("silent with authorization", func(t *testing.T) {
		p := testhelper.NewMemProvider()
		p.Authorize(true)
		a := newAdapter(p)

		_, err := a.Connect(ctx, wallets.ConnectOptions{Silent: true})
		require.NoError(t, err)
	})

	t.Run("requested chain", func(t *testing.T) {
		p := testhelper.NewMemProvider()
		p.AddKnownChain(137)
		a := newAdapter(p)

		_, err := a.Connect(ctx, wallets.ConnectOptions{ChainID: 137})
		require.NoError(t, err)
		require.Equal(t, uint64(137), a.ChainID())
		require.Equal(t, uint64(137), p.ChainID())
	})

	t.Run("error codes", func(t *testing.T) {
		cases := []struct {
			code   int
			expect error
		}{
			{injected.CodeUserRejected, types.ErrUserRejected},
			{injected.CodeUnauthorized, types.ErrUnavailable},
			{injected.CodeUnsupportedMethod, types.ErrUnavailable},
			{injected.CodeDisconnected, types.ErrUnavailable},
			{injected.CodeResourceUnavailble, types.ErrAlreadyConnecting},
			{-32603, types.ErrUnavailable},
		}
		for _, c := range cases {
			p := testhelper.NewMemProvider()
			p.Reject("eth_requestAccounts", c.code)
			_, err := newAdapter(p).Connect(ctx, wallets.ConnectOptions{})
			require.ErrorIs(t, err, c.expect, "code %d", c.code)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		p := testhelper.NewMemProvider()
		p.Fail("eth_chainId", errors.New("connection refused"))
		_, err := newAdapter(p).Connect(ctx, wallets.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		p := testhelper.NewMemProvider()
		p.Gate = make(chan struct{})
		a := injected.New(injected.Config{ConnectTimeout: 20 * time.Millisecond}, p, nil)

		_, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrTimeout)
	})

	t.Run("no provider", func(t *testing.T) {
		_, err := injected.New(injected.DefaultConfig(), nil, nil).Connect(ctx, wallets.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrUnavailable)
	})
}

func TestSwitchChain(t *testing.T) {
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		a := newAdapter(testhelper.NewMemProvider())
		require.ErrorIs(t, a.SwitchChain(ctx, 137), types.ErrNotConnected)
	})

	t.Run("known chain", func(t *testing.T) {
		p := testhelper.NewMemProvider()
		p.AddKnownChain(10)
		a := newAdapter(p)
		_, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.NoError(t, err)

		require.NoError(t, a.SwitchChain(ctx, 10))
		require.Equal(t, uint64(10), a.ChainID())
		require.NotContains(t, p.Calls(), "wallet_addEthereumChain")
	})

	t.Run("add chain fallback", func(t *testing.T) {
		p := testhelper.NewMemProvider()
		a := newAdapter(p)
		_, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.NoError(t, err)

		require.NoError(t, a.SwitchChain(ctx, 8453))
		require.Equal(t, uint64(8453), a.ChainID())
		require.Contains(t, p.Calls(), "wallet_addEthereumChain")
	})

	t.Run("chain outside registry", func(t *testing.T) {
		p := testhelper.NewMemProvider()
		a := newAdapter(p)
		_, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.NoError(t, err)

		require.ErrorIs(t, a.SwitchChain(ctx, 999999), types.ErrUnsupportedChain)
		require.Equal(t, uint64(1), a.ChainID())
	})

	t.Run("add chain refused", func(t *testing.T) {
		p := testhelper.NewMemProvider()
		p.Reject("wallet_addEthereumChain", -32603)
		a := newAdapter(p)
		_, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.NoError(t, err)

		require.ErrorIs(t, a.SwitchChain(ctx, 8453), types.ErrUnsupportedChain)
	})

	t.Run("user rejects switch", func(t *testing.T) {
		p := testhelper.NewMemProvider()
		p.Reject("wallet_switchEthereumChain", injected.CodeUserRejected)
		a := newAdapter(p)
		_, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.NoError(t, err)

		require.ErrorIs(t, a.SwitchChain(ctx, 10), types.ErrUserRejected)
	})
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	p := testhelper.NewMemProvider()
	a := newAdapter(p)

	var got []types.AdapterEvent
	unsub := a.Subscribe(func(ev types.AdapterEvent) { got = append(got, ev) })
	defer unsub()

	_, err := a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, p.Listeners("accountsChanged"))

	next := testhelper.RandomAddress()
	p.SetAccounts(next)
	p.SetChain(42161)
	p.SetAccounts()
	p.Drop()

	require.Len(t, got, 4)
	require.Equal(t, types.AccountsChanged, got[0].Type)
	require.Equal(t, next, got[0].Accounts[0].Address)
	require.Equal(t, types.ChainChanged, got[1].Type)
	require.Equal(t, uint64(42161), got[1].ChainID)
	require.Equal(t, types.AccountsChanged, got[2].Type)
	require.Empty(t, got[2].Accounts)
	require.Equal(t, types.Disconnected, got[3].Type)
	require.ErrorIs(t, got[3].Err, types.ErrUnavailable)

	require.NoError(t, a.Disconnect(ctx))
	require.Equal(t, 0, p.Listeners("accountsChanged"))
	require.Equal(t, 0, p.Listeners("chainChanged"))
	require.Equal(t, 0, p.Listeners("disconnect"))
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	p := testhelper.NewMemProvider()
	a := newAdapter(p)

	require.NoError(t, a.Disconnect(ctx))
	require.NotContains(t, p.Calls(), "wallet_revokePermissions")

	_, err := a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)
	require.NoError(t, a.Disconnect(ctx))
	require.Nil(t, a.Account())
	require.Contains(t, p.Calls(), "wallet_revokePermissions")

	_, err = a.Connect(ctx, wallets.ConnectOptions{Silent: true})
	require.ErrorIs(t, err, types.ErrUserRejected)

	p.Reject("wallet_revokePermissions", injected.CodeUnsupportedMethod)
	_, err = a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)
	require.NoError(t, a.Disconnect(ctx))
}

func TestSignAndSend(t *testing.T) {
	ctx := context.Background()
	p := testhelper.NewMemProvider()
	a := newAdapter(p)

	_, err := a.SignMessage(ctx, []byte("hello"))
	require.ErrorIs(t, err, types.ErrNotConnected)

	_, err = a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)

	signer, err := wallets.AsSigner(a)
	require.NoError(t, err)
	sig, err := signer.SignMessage(ctx, []byte("hello"))
	require.NoError(t, err)
	require.Len(t, sig, 32)

	to := testhelper.RandomAddress()
	hash, err := a.SendTransaction(ctx, &types.TransactionRequest{To: &to})
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, hash)

	p.Reject("personal_sign", injected.CodeUserRejected)
	_, err = a.SignMessage(ctx, []byte("hello"))
	require.ErrorIs(t, err, types.ErrUserRejected)
}
