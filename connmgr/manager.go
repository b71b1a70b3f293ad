// Package connmgr coordinates wallet adapters: it tracks the connected
// wallets and the single active wallet, account and chain, persists the last
// connection and restores it silently at start.
package connmgr

import (
	"context"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/ipfs-force-community/sophon-connector/chains"
	"github.com/ipfs-force-community/sophon-connector/events"
	"github.com/ipfs-force-community/sophon-connector/metrics"
	"github.com/ipfs-force-community/sophon-connector/storage"
	"github.com/ipfs-force-community/sophon-connector/store"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
)

var log = logging.Logger("connmgr")

type Options struct {
	Registry *chains.Registry
	Storage  storage.Storage
	Sink     events.Sink
	// DefaultChain is recorded for wallets that do not report a chain.
	// Zero picks the registry default.
	DefaultChain uint64
	KeyPrefix    string
}

type walletRecord struct {
	adapter wallets.Adapter
	account *types.Account
	chain   *types.Chain
	unsub   func()
}

// attempt marks one in-flight connect. Disconnect removes it, which tells the
// connect to drop its result.
type attempt struct{}

type Manager struct {
	registry     *chains.Registry
	storage      storage.Storage
	sink         events.Sink
	keys         storage.Keys
	defaultChain uint64

	lk         sync.Mutex
	seq        uint64
	adapters   map[types.WalletID]wallets.Adapter
	order      []types.WalletID
	connected  map[types.WalletID]*walletRecord
	connOrder  []types.WalletID
	connecting map[types.WalletID]*attempt
	statuses   map[types.WalletID]types.Status
	activeID   types.WalletID

	// serializes storage writes so they land in operation order
	persistLk sync.Mutex

	active      *store.Store[versioned[ActiveState]]
	connStore   *store.Store[versioned[[]types.WalletID]]
	statusStore *store.Store[versioned[map[types.WalletID]types.Status]]

	activeView  store.Reader[ActiveState]
	accountView store.Reader[*types.Account]
	chainView   store.Reader[*types.Chain]
	connView    store.Reader[[]types.WalletID]
	statusView  store.Reader[map[types.WalletID]types.Status]
}

func New(opts Options) *Manager {
	if opts.Registry == nil {
		opts.Registry = chains.NewRegistry()
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewMemoryStorage()
	}
	if opts.Sink == nil {
		opts.Sink = events.Nop()
	}
	if opts.DefaultChain == 0 {
		if c := opts.Registry.Default(); c != nil {
			opts.DefaultChain = c.ID
		}
	}
	m := &Manager{
		registry:     opts.Registry,
		storage:      opts.Storage,
		sink:         opts.Sink,
		keys:         storage.NewKeys(opts.KeyPrefix),
		defaultChain: opts.DefaultChain,
		adapters:     make(map[types.WalletID]wallets.Adapter),
		connected:    make(map[types.WalletID]*walletRecord),
		connecting:   make(map[types.WalletID]*attempt),
		statuses:     make(map[types.WalletID]types.Status),
		active:       newVersioned(ActiveState{}),
		connStore:    newVersioned([]types.WalletID{}),
		statusStore:  newVersioned(map[types.WalletID]types.Status{}),
	}

	m.activeView = store.DeriveDistinct[versioned[ActiveState]](m.active, unwrap[ActiveState], activeEqual)
	m.accountView = store.DeriveDistinct[versioned[ActiveState]](m.active, func(v versioned[ActiveState]) *types.Account {
		return v.v.Account
	}, accountEqual)
	m.chainView = store.DeriveDistinct[versioned[ActiveState]](m.active, func(v versioned[ActiveState]) *types.Chain {
		return v.v.Chain
	}, chainEqual)
	m.connView = store.DeriveDistinct[versioned[[]types.WalletID]](m.connStore, unwrap[[]types.WalletID], idsEqual)
	m.statusView = store.DeriveDistinct[versioned[map[types.WalletID]types.Status]](m.statusStore, unwrap[map[types.WalletID]types.Status], statusesEqual)
	return m
}

// Register adds a to the connectable backends.
func (m *Manager) Register(a wallets.Adapter) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	id := a.ID()
	if id == "" {
		return errors.New("wallet id is required")
	}
	if _, ok := m.adapters[id]; ok {
		return errors.Errorf("wallet %s already registered", id)
	}
	m.adapters[id] = a
	m.order = append(m.order, id)
	m.statuses[id] = types.StatusDisconnected
	log.Infow("register wallet", "wallet", id, "capabilities", a.Capabilities().String())
	return nil
}

// Wallets lists registered wallet ids in registration order.
func (m *Manager) Wallets() []types.WalletID {
	m.lk.Lock()
	defer m.lk.Unlock()
	return append([]types.WalletID(nil), m.order...)
}

func (m *Manager) Adapter(id types.WalletID) (wallets.Adapter, bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	a, ok := m.adapters[id]
	return a, ok
}

func (m *Manager) Registry() *chains.Registry { return m.registry }

// Active is the combined active wallet, account and chain.
func (m *Manager) Active() store.Reader[ActiveState] { return m.activeView }

func (m *Manager) ActiveAccount() store.Reader[*types.Account] { return m.accountView }

func (m *Manager) ActiveChain() store.Reader[*types.Chain] { return m.chainView }

// ConnectedWallets is the connected set in connect order.
func (m *Manager) ConnectedWallets() store.Reader[[]types.WalletID] { return m.connView }

func (m *Manager) Statuses() store.Reader[map[types.WalletID]types.Status] { return m.statusView }

// Status reports the lifecycle state of id, unknown ids are disconnected.
func (m *Manager) Status(id types.WalletID) types.Status {
	m.lk.Lock()
	defer m.lk.Unlock()
	if s, ok := m.statuses[id]; ok {
		return s
	}
	return types.StatusDisconnected
}

func (m *Manager) ConnectedCount() int {
	m.lk.Lock()
	defer m.lk.Unlock()
	return len(m.connOrder)
}

// WalletState is the record of one connected wallet.
func (m *Manager) WalletState(id types.WalletID) (ActiveState, types.Status, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if _, ok := m.adapters[id]; !ok {
		return ActiveState{}, types.StatusDisconnected, errors.Wrapf(types.ErrUnavailable, "wallet %s is not registered", id)
	}
	status := m.statuses[id]
	rec, ok := m.connected[id]
	if !ok {
		return ActiveState{WalletID: id}, status, nil
	}
	return ActiveState{WalletID: id, Account: rec.account, Chain: rec.chain}, status, nil
}

// Close detaches from every adapter. Connections are left as they are.
func (m *Manager) Close(ctx context.Context) error {
	m.lk.Lock()
	unsubs := make([]func(), 0, len(m.connected))
	for _, rec := range m.connected {
		if rec.unsub != nil {
			unsubs = append(unsubs, rec.unsub)
			rec.unsub = nil
		}
	}
	m.lk.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
	return nil
}

// publishLocked snapshots the state and returns the func that pushes it to
// the stores. It must be called with lk held and the result run without it,
// listeners are free to call back into the manager.
func (m *Manager) publishLocked() func() {
	m.seq++
	seq := m.seq

	var active ActiveState
	if rec, ok := m.connected[m.activeID]; ok {
		active = ActiveState{WalletID: m.activeID, Account: rec.account, Chain: rec.chain}
	}
	conn := append([]types.WalletID{}, m.connOrder...)
	statuses := make(map[types.WalletID]types.Status, len(m.statuses))
	for id, s := range m.statuses {
		statuses[id] = s
	}

	return func() {
		m.active.Set(versioned[ActiveState]{seq: seq, v: active})
		m.connStore.Set(versioned[[]types.WalletID]{seq: seq, v: conn})
		m.statusStore.Set(versioned[map[types.WalletID]types.Status]{seq: seq, v: statuses})
	}
}

func (m *Manager) chainOf(a wallets.Adapter) *types.Chain {
	id := a.ChainID()
	if id == 0 {
		id = m.defaultChain
	}
	return m.registry.Lookup(id)
}

func (m *Manager) removeConnLocked(id types.WalletID) {
	for i, cur := range m.connOrder {
		if cur == id {
			m.connOrder = append(m.connOrder[:i:i], m.connOrder[i+1:]...)
			return
		}
	}
}

func (m *Manager) emit(ctx context.Context, ev *events.Event) {
	ev.Time = time.Now()
	if err := m.sink.Publish(ctx, ev); err != nil {
		log.Warnf("publish %s event of %s: %v", ev.Kind, ev.Wallet, err)
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(types.Classify(err))
}

func record(ctx context.Context, id types.WalletID, err error, ms ...stats.Measurement) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{
		tag.Upsert(metrics.WalletKey, string(id)),
		tag.Upsert(metrics.OutcomeKey, outcome(err)),
	}, ms...)
}

func accountString(a *types.Account) string {
	if a == nil {
		return ""
	}
	return a.Address.Hex()
}
