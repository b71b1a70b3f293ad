package relay_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/testhelper"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
	"github.com/ipfs-force-community/sophon-connector/wallets/relay"
)

const topic = "pairing-topic"

func setupHub(t *testing.T) *relay.Hub {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return relay.NewHub(ctx, &types.RequestConfig{
		RequestQueueSize: 30,
		RequestTimeout:   5 * time.Second,
		ClearInterval:    time.Second,
	})
}

// pair starts a wallet app session on hub and waits until it is routable.
func pair(t *testing.T, hub *relay.Hub, wallet *testhelper.RelayWallet) (*relay.Client, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	client := relay.NewClient(wallet, hub, &relay.SessionPolicy{Topic: topic, Name: "mock wallet"}, logging.Logger("test").With())
	go client.ListenRelayRequest(ctx)

	readyCtx, readyCancel := context.WithTimeout(ctx, 5*time.Second)
	defer readyCancel()
	client.WaitReady(readyCtx)
	require.NoError(t, readyCtx.Err())
	return client, cancel
}

type eventRecorder struct {
	lk     sync.Mutex
	events []types.AdapterEvent
}

func (r *eventRecorder) record(ev types.AdapterEvent) {
	r.lk.Lock()
	defer r.lk.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) list() []types.AdapterEvent {
	r.lk.Lock()
	defer r.lk.Unlock()
	return append([]types.AdapterEvent(nil), r.events...)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("correct", func(t *testing.T) {
		hub := setupHub(t)
		wallet := testhelper.NewRelayWallet()
		_, _ = pair(t, hub, wallet)

		a := relay.New(relay.Config{Topic: topic}, hub)
		account, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.NoError(t, err)
		require.Equal(t, wallet.Address(), account.Address)
		require.Equal(t, relay.DefaultID, account.Wallet)
		require.Equal(t, uint64(1), a.ChainID())

		sessions, err := hub.ListRelaySessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		require.Equal(t, topic, sessions[0].Topic)
		require.Equal(t, "mock wallet", sessions[0].Name)
		require.Equal(t, wallet.Address(), sessions[0].Accounts[0])
		require.Equal(t, 0, hub.Pending())
	})

	t.Run("silent without session", func(t *testing.T) {
		hub := setupHub(t)
		a := relay.New(relay.Config{Topic: topic}, hub)
		_, err := a.Connect(ctx, wallets.ConnectOptions{Silent: true})
		require.ErrorIs(t, err, types.ErrUnavailable)
	})

	t.Run("silent with session", func(t *testing.T) {
		hub := setupHub(t)
		_, _ = pair(t, hub, testhelper.NewRelayWallet())
		require.True(t, hub.HasSession(topic))

		a := relay.New(relay.Config{Topic: topic}, hub)
		_, err := a.Connect(ctx, wallets.ConnectOptions{Silent: true})
		require.NoError(t, err)
	})

	t.Run("waits for pairing", func(t *testing.T) {
		hub := setupHub(t)
		wallet := testhelper.NewRelayWallet()
		a := relay.New(relay.Config{Topic: topic, ConnectTimeout: 5 * time.Second}, hub)

		done := make(chan error, 1)
		go func() {
			_, err := a.Connect(ctx, wallets.ConnectOptions{})
			done <- err
		}()
		time.Sleep(50 * time.Millisecond)
		_, _ = pair(t, hub, wallet)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("connect did not finish after pairing")
		}
		require.Equal(t, wallet.Address(), a.Account().Address)
	})

	t.Run("pairing timeout", func(t *testing.T) {
		hub := setupHub(t)
		a := relay.New(relay.Config{Topic: topic, ConnectTimeout: 50 * time.Millisecond}, hub)
		_, err := a.Connect(ctx, wallets.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrTimeout)
	})

	t.Run("user rejects", func(t *testing.T) {
		hub := setupHub(t)
		wallet := testhelper.NewRelayWallet()
		wallet.SetReject(true)
		_, _ = pair(t, hub, wallet)

		_, err := relay.New(relay.Config{Topic: topic}, hub).Connect(ctx, wallets.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrUserRejected)
	})

	t.Run("wallet failure", func(t *testing.T) {
		hub := setupHub(t)
		wallet := testhelper.NewRelayWallet()
		wallet.SetFail(true)
		_, _ = pair(t, hub, wallet)

		_, err := relay.New(relay.Config{Topic: topic}, hub).Connect(ctx, wallets.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrUnavailable)
	})

	t.Run("requested chain", func(t *testing.T) {
		hub := setupHub(t)
		_, _ = pair(t, hub, testhelper.NewRelayWallet(137))

		a := relay.New(relay.Config{Topic: topic}, hub)
		_, err := a.Connect(ctx, wallets.ConnectOptions{ChainID: 137})
		require.NoError(t, err)
		require.Equal(t, uint64(137), a.ChainID())
	})
}

func TestSwitchChain(t *testing.T) {
	ctx := context.Background()
	hub := setupHub(t)
	_, _ = pair(t, hub, testhelper.NewRelayWallet(137))
	a := relay.New(relay.Config{Topic: topic}, hub)

	require.ErrorIs(t, a.SwitchChain(ctx, 137), types.ErrNotConnected)

	_, err := a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)
	require.NoError(t, a.SwitchChain(ctx, 137))
	require.Equal(t, uint64(137), a.ChainID())

	require.ErrorIs(t, a.SwitchChain(ctx, 10), types.ErrUnsupportedChain)
	require.Equal(t, uint64(137), a.ChainID())

	sessions, err := hub.ListRelaySessions(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(137), sessions[0].ChainID)
}

func TestSignMessage(t *testing.T) {
	ctx := context.Background()
	hub := setupHub(t)
	wallet := testhelper.NewRelayWallet()
	_, _ = pair(t, hub, wallet)
	a := relay.New(relay.Config{Topic: topic}, hub)
	_, err := a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)

	msg := []byte("hello relay")
	sig, err := a.SignMessage(ctx, msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	sig[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	require.NoError(t, err)
	require.Equal(t, wallet.Address(), crypto.PubkeyToAddress(*pub))

	hash, err := a.SendTransaction(ctx, &types.TransactionRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, hash.Hex())
}

func TestSessionEvents(t *testing.T) {
	ctx := context.Background()
	hub := setupHub(t)
	wallet := testhelper.NewRelayWallet()
	client, closeSession := pair(t, hub, wallet)

	a := relay.New(relay.Config{Topic: topic}, hub)
	recorder := &eventRecorder{}
	unsub := a.Subscribe(recorder.record)
	defer unsub()

	_, err := a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)

	next := testhelper.RandomAddress()
	require.NoError(t, client.Notify(ctx, &types.SessionEvent{Type: types.AccountsChanged, Accounts: []string{next.Hex()}}))
	require.NoError(t, client.Notify(ctx, &types.SessionEvent{Type: types.ChainChanged, ChainID: 8453}))
	require.Error(t, client.Notify(ctx, &types.SessionEvent{Type: types.AccountsChanged, Accounts: []string{"not an address"}}))

	events := recorder.list()
	require.Len(t, events, 2)
	require.Equal(t, next, events[0].Accounts[0].Address)
	require.Equal(t, next, a.Account().Address)
	require.Equal(t, uint64(8453), events[1].ChainID)
	require.Equal(t, uint64(8453), a.ChainID())

	closeSession()
	require.Eventually(t, func() bool {
		return len(recorder.list()) == 3
	}, 5*time.Second, 10*time.Millisecond)
	last := recorder.list()[2]
	require.Equal(t, types.Disconnected, last.Type)
	require.ErrorIs(t, last.Err, types.ErrUnavailable)
	require.Nil(t, a.Account())
	require.Eventually(t, func() bool { return hub.SessionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestWalletDisconnects(t *testing.T) {
	ctx := context.Background()
	hub := setupHub(t)
	client, _ := pair(t, hub, testhelper.NewRelayWallet())

	a := relay.New(relay.Config{Topic: topic}, hub)
	recorder := &eventRecorder{}
	defer a.Subscribe(recorder.record)()

	_, err := a.Connect(ctx, wallets.ConnectOptions{})
	require.NoError(t, err)
	require.NoError(t, client.Notify(ctx, &types.SessionEvent{Type: types.Disconnected}))

	events := recorder.list()
	require.Len(t, events, 1)
	require.Equal(t, types.Disconnected, events[0].Type)
	_, err = a.SignMessage(ctx, []byte("x"))
	require.ErrorIs(t, err, types.ErrNotConnected)

	// dapp side disconnect of an idle adapter is a no-op
	require.NoError(t, a.Disconnect(ctx))
}

func TestHubValidation(t *testing.T) {
	ctx := context.Background()
	hub := setupHub(t)

	_, err := hub.ListenRelaySession(ctx, &relay.SessionPolicy{})
	require.Error(t, err)
	_, err = hub.ListenRelaySession(ctx, nil)
	require.Error(t, err)

	err = hub.NotifyRelayEvent(ctx, uuid.New(), &types.SessionEvent{Type: types.ChainChanged, ChainID: 1})
	require.Error(t, err)

	client, _ := pair(t, hub, testhelper.NewRelayWallet())
	require.Error(t, hub.NotifyRelayEvent(ctx, client.Channel(), &types.SessionEvent{Type: types.ChainChanged}))
	require.Error(t, hub.NotifyRelayEvent(ctx, client.Channel(), &types.SessionEvent{Type: "bogus"}))
	require.Error(t, hub.NotifyRelayEvent(ctx, client.Channel(), nil))
}
