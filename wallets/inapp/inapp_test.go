package inapp

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
)

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("login then resume", func(t *testing.T) {
		enclave := NewMemEnclave(0)
		a := New(DefaultConfig(), enclave, nil)

		account, err := a.Connect(ctx, wallets.ConnectOptions{Strategy: "email", Identifier: "alice@example.com"})
		require.NoError(t, err)
		require.Equal(t, DefaultID, account.Wallet)
		require.Equal(t, uint64(1), a.ChainID())
		token := a.SessionToken()
		require.NotEmpty(t, token)

		other := New(DefaultConfig(), enclave, nil)
		resumed, err := other.Connect(ctx, wallets.ConnectOptions{Silent: true, SessionToken: token})
		require.NoError(t, err)
		require.Equal(t, account.Address, resumed.Address)
	})

	t.Run("same identity same address", func(t *testing.T) {
		enclave := NewMemEnclave(0)
		a := New(DefaultConfig(), enclave, nil)
		first, err := a.Connect(ctx, wallets.ConnectOptions{Identifier: "Bob@example.com"})
		require.NoError(t, err)
		require.NoError(t, a.Disconnect(ctx))

		second, err := a.Connect(ctx, wallets.ConnectOptions{Identifier: " bob@example.com"})
		require.NoError(t, err)
		require.Equal(t, first.Address, second.Address)
	})

	t.Run("silent without token", func(t *testing.T) {
		a := New(DefaultConfig(), NewMemEnclave(0), nil)
		_, err := a.Connect(ctx, wallets.ConnectOptions{Silent: true})
		require.ErrorIs(t, err, types.ErrUserRejected)
	})

	t.Run("missing identifier", func(t *testing.T) {
		a := New(DefaultConfig(), NewMemEnclave(0), nil)
		_, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrUserRejected)
	})

	t.Run("stale token", func(t *testing.T) {
		a := New(DefaultConfig(), NewMemEnclave(0), nil)
		_, err := a.Connect(ctx, wallets.ConnectOptions{Silent: true, SessionToken: "stale"})
		require.ErrorIs(t, err, types.ErrUserRejected)
		require.Nil(t, a.Account())
	})

	t.Run("enclave down", func(t *testing.T) {
		enclave := NewMemEnclave(0)
		enclave.SetFail(true)
		a := New(DefaultConfig(), enclave, nil)
		_, err := a.Connect(ctx, wallets.ConnectOptions{Identifier: "carol"})
		require.ErrorIs(t, err, types.ErrUnavailable)
	})

	t.Run("unknown chain", func(t *testing.T) {
		a := New(DefaultConfig(), NewMemEnclave(0), nil)
		_, err := a.Connect(ctx, wallets.ConnectOptions{Identifier: "dave", ChainID: 999999})
		require.ErrorIs(t, err, types.ErrUnsupportedChain)
	})
}

func TestDisconnectLogsOut(t *testing.T) {
	ctx := context.Background()
	enclave := NewMemEnclave(0)
	a := New(DefaultConfig(), enclave, nil)

	require.NoError(t, a.Disconnect(ctx))

	_, err := a.Connect(ctx, wallets.ConnectOptions{Identifier: "erin"})
	require.NoError(t, err)
	token := a.SessionToken()
	require.NoError(t, a.Disconnect(ctx))
	require.Empty(t, a.SessionToken())

	_, err = enclave.Resume(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSwitchChain(t *testing.T) {
	ctx := context.Background()
	a := New(DefaultConfig(), NewMemEnclave(0), nil)
	require.ErrorIs(t, a.SwitchChain(ctx, 137), types.ErrNotConnected)

	_, err := a.Connect(ctx, wallets.ConnectOptions{Identifier: "frank"})
	require.NoError(t, err)
	require.NoError(t, a.SwitchChain(ctx, 137))
	require.Equal(t, uint64(137), a.ChainID())
	require.ErrorIs(t, a.SwitchChain(ctx, 999999), types.ErrUnsupportedChain)
	require.Equal(t, uint64(137), a.ChainID())
}

func TestSignMessage(t *testing.T) {
	ctx := context.Background()
	enclave := NewMemEnclave(time.Hour)
	a := New(DefaultConfig(), enclave, nil)

	_, err := a.SignMessage(ctx, []byte("hi"))
	require.ErrorIs(t, err, types.ErrNotConnected)

	account, err := a.Connect(ctx, wallets.ConnectOptions{Identifier: "grace"})
	require.NoError(t, err)

	msg := []byte("sign in to sophon")
	sig, err := a.SignMessage(ctx, msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	recoverable := append([]byte(nil), sig...)
	recoverable[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash(msg), recoverable)
	require.NoError(t, err)
	require.Equal(t, account.Address, crypto.PubkeyToAddress(*pub))

	t.Run("expired session disconnects", func(t *testing.T) {
		var events []types.AdapterEvent
		unsub := a.Subscribe(func(ev types.AdapterEvent) { events = append(events, ev) })
		defer unsub()

		enclave.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := a.SignMessage(ctx, msg)
		require.ErrorIs(t, err, types.ErrUserRejected)
		require.Nil(t, a.Account())
		require.Len(t, events, 1)
		require.Equal(t, types.Disconnected, events[0].Type)
	})
}

func TestHDEnclave(t *testing.T) {
	ctx := context.Background()
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	_, err := NewHDEnclave("not a mnemonic", 0)
	require.Error(t, err)

	first, err := NewHDEnclave(mnemonic, 0)
	require.NoError(t, err)
	second, err := NewHDEnclave(mnemonic, 0)
	require.NoError(t, err)

	alice, err := first.Login(ctx, LoginOptions{Identifier: "alice@example.com"})
	require.NoError(t, err)
	again, err := second.Login(ctx, LoginOptions{Identifier: "Alice@example.com "})
	require.NoError(t, err)
	require.Equal(t, alice.Address, again.Address)
	require.NotEqual(t, alice.Token, again.Token)

	bob, err := first.Login(ctx, LoginOptions{Identifier: "bob@example.com"})
	require.NoError(t, err)
	require.NotEqual(t, alice.Address, bob.Address)

	digest := crypto.Keccak256([]byte("hello"))
	sig, err := second.Sign(ctx, again.Token, digest)
	require.NoError(t, err)
	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	require.Equal(t, alice.Address, crypto.PubkeyToAddress(*pub))
}
