package connmgr

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/ipfs-force-community/sophon-connector/events"
	"github.com/ipfs-force-community/sophon-connector/metrics"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
)

// Connect connects wallet id and makes it the active wallet. A second
// Connect for a wallet that is still connecting fails with
// types.ErrAlreadyConnecting, one for a connected wallet selects it and
// returns its account. Failures leave the manager state as it was.
func (m *Manager) Connect(ctx context.Context, id types.WalletID, opts wallets.ConnectOptions) (*types.Account, error) {
	return m.connect(ctx, id, opts, true)
}

func (m *Manager) connect(ctx context.Context, id types.WalletID, opts wallets.ConnectOptions, activate bool) (*types.Account, error) {
	m.lk.Lock()
	adapter, ok := m.adapters[id]
	if !ok {
		m.lk.Unlock()
		return nil, errors.Wrapf(types.ErrUnavailable, "wallet %s is not registered", id)
	}
	if _, busy := m.connecting[id]; busy {
		m.lk.Unlock()
		return nil, errors.Wrapf(types.ErrAlreadyConnecting, "wallet %s", id)
	}
	if rec, ok := m.connected[id]; ok {
		account := rec.account
		m.lk.Unlock()
		if activate {
			if err := m.SetActiveWallet(ctx, id); err != nil {
				return nil, err
			}
		}
		return account, nil
	}

	token := &attempt{}
	m.connecting[id] = token
	m.statuses[id] = types.StatusConnecting
	publish := m.publishLocked()
	m.lk.Unlock()
	publish()

	walletLog := log.With("wallet", id).With("silent", opts.Silent)
	walletLog.Infof("connecting")
	start := time.Now()
	account, err := adapter.Connect(ctx, opts)
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(metrics.WalletKey, string(id))},
		metrics.ConnectSpent.M(metrics.SinceInMilliseconds(start)))

	m.lk.Lock()
	if m.connecting[id] != token {
		// disconnected while the adapter was busy. A newer connect may own
		// the adapter by now, leave it alone then.
		teardown := err == nil && m.connected[id] == nil && m.connecting[id] == nil
		m.lk.Unlock()
		if teardown {
			if derr := adapter.Disconnect(ctx); derr != nil {
				walletLog.Warnf("disconnect stale connection: %v", derr)
			}
		}
		walletLog.Infof("connect dropped, wallet was disconnected meanwhile")
		err = errors.Wrapf(types.ErrNotConnected, "wallet %s disconnected while connecting", id)
		record(ctx, id, err, metrics.Connect.M(1))
		return nil, err
	}
	delete(m.connecting, id)

	if err == nil && account == nil {
		err = errors.Wrapf(types.ErrUnavailable, "wallet %s returned no account", id)
	}
	if err != nil {
		m.statuses[id] = types.StatusError
		publish = m.publishLocked()
		m.lk.Unlock()
		publish()

		walletLog.Warnf("connect failed: %v", err)
		record(ctx, id, err, metrics.Connect.M(1))
		m.emit(ctx, &events.Event{Kind: events.ConnectFailed, Wallet: id, Code: types.Classify(err)})
		return nil, err
	}

	rec := &walletRecord{adapter: adapter, account: account, chain: m.chainOf(adapter)}
	m.connected[id] = rec
	m.connOrder = append(m.connOrder, id)
	m.statuses[id] = types.StatusConnected
	if activate {
		m.activeID = id
	}
	rec.unsub = adapter.Subscribe(func(ev types.AdapterEvent) {
		m.onAdapterEvent(id, rec, ev)
	})
	publish = m.publishLocked()
	m.lk.Unlock()
	publish()

	session := ""
	if holder, ok := adapter.(wallets.SessionHolder); ok {
		session = holder.SessionToken()
	}
	m.persistConnect(ctx, id, rec, session, activate)

	walletLog.Infow("connected", "account", account.Address.Hex(), "chain", chainIDOf(rec.chain))
	record(ctx, id, nil, metrics.Connect.M(1))
	m.emit(ctx, &events.Event{Kind: events.Connected, Wallet: id, Account: account.Address.Hex(), ChainID: chainIDOf(rec.chain)})
	return account, nil
}

// Disconnect drops wallet id. A connect still in flight for id is abandoned.
// Disconnecting a wallet that is not connected does nothing. The active
// wallet is not replaced when it is the one disconnected.
func (m *Manager) Disconnect(ctx context.Context, id types.WalletID) error {
	m.lk.Lock()
	_, pending := m.connecting[id]
	if pending {
		delete(m.connecting, id)
		m.statuses[id] = types.StatusDisconnected
	}
	rec, ok := m.connected[id]
	if !ok {
		var publish func()
		if pending {
			publish = m.publishLocked()
		}
		m.lk.Unlock()
		if publish != nil {
			publish()
			log.Infow("abandon pending connect", "wallet", id)
		}
		return nil
	}

	delete(m.connected, id)
	m.removeConnLocked(id)
	m.statuses[id] = types.StatusDisconnected
	wasActive := m.activeID == id
	if wasActive {
		m.activeID = ""
	}
	unsub := rec.unsub
	rec.unsub = nil
	publish := m.publishLocked()
	m.lk.Unlock()

	if unsub != nil {
		unsub()
	}
	publish()

	if err := rec.adapter.Disconnect(ctx); err != nil {
		log.Warnw("adapter disconnect failed", "wallet", id, "err", err)
	}
	m.persistDisconnect(ctx, id)

	log.Infow("disconnected", "wallet", id, "active", wasActive)
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(metrics.WalletKey, string(id))}, metrics.Disconnect.M(1))
	m.emit(ctx, &events.Event{Kind: events.Disconnected, Wallet: id, Account: accountString(rec.account)})
	return nil
}

// SetActiveWallet selects a connected wallet. The account and chain switch in
// the same notification.
func (m *Manager) SetActiveWallet(ctx context.Context, id types.WalletID) error {
	m.lk.Lock()
	rec, ok := m.connected[id]
	if !ok {
		m.lk.Unlock()
		return errors.Wrapf(types.ErrNotConnected, "wallet %s", id)
	}
	if m.activeID == id {
		m.lk.Unlock()
		return nil
	}
	m.activeID = id
	publish := m.publishLocked()
	account, chain := rec.account, rec.chain
	m.lk.Unlock()
	publish()

	m.persistActive(ctx, id)
	log.Infow("active wallet changed", "wallet", id)
	m.emit(ctx, &events.Event{Kind: events.ActiveChanged, Wallet: id, Account: accountString(account), ChainID: chainIDOf(chain)})
	return nil
}

// SwitchActiveWalletChain asks the active wallet to move to chainID. The
// chain is only recorded once the adapter confirms, and only on the wallet
// that was asked.
func (m *Manager) SwitchActiveWalletChain(ctx context.Context, chainID uint64) error {
	m.lk.Lock()
	id := m.activeID
	rec, ok := m.connected[id]
	m.lk.Unlock()
	if !ok {
		return errors.Wrap(types.ErrNoActiveWallet, "switch chain")
	}

	err := m.switchChain(ctx, rec.adapter, chainID)
	_ = stats.RecordWithTags(ctx, []tag.Mutator{
		tag.Upsert(metrics.WalletKey, string(id)),
		tag.Upsert(metrics.ChainKey, types.ChainIDHex(chainID)),
		tag.Upsert(metrics.OutcomeKey, outcome(err)),
	}, metrics.SwitchChain.M(1))
	if err != nil {
		log.Warnw("switch chain failed", "wallet", id, "chain", chainID, "err", err)
		return err
	}
	chain := m.registry.MustGet(chainID)

	m.lk.Lock()
	if m.connected[id] != rec {
		m.lk.Unlock()
		log.Infow("wallet gone before chain switch completed", "wallet", id, "chain", chainID)
		return nil
	}
	rec.chain = chain
	publish := m.publishLocked()
	m.lk.Unlock()
	publish()

	log.Infow("chain switched", "wallet", id, "chain", chainID)
	m.emit(ctx, &events.Event{Kind: events.ChainChanged, Wallet: id, Account: accountString(rec.account), ChainID: chainID})
	return nil
}

func (m *Manager) switchChain(ctx context.Context, a wallets.Adapter, chainID uint64) error {
	if _, err := m.registry.Get(chainID); err != nil {
		return err
	}
	if err := wallets.Require(a, types.CapSwitchChain); err != nil {
		return err
	}
	return a.SwitchChain(ctx, chainID)
}

func (m *Manager) activeAdapter() (wallets.Adapter, *types.Account, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	rec, ok := m.connected[m.activeID]
	if !ok {
		return nil, nil, types.ErrNoActiveWallet
	}
	return rec.adapter, rec.account, nil
}

// SignMessage signs msg with the active wallet.
func (m *Manager) SignMessage(ctx context.Context, msg []byte) ([]byte, *types.Account, error) {
	a, account, err := m.activeAdapter()
	if err != nil {
		return nil, nil, err
	}
	signer, err := wallets.AsSigner(a)
	if err != nil {
		return nil, nil, err
	}
	sig, err := signer.SignMessage(ctx, msg)
	if err != nil {
		return nil, nil, err
	}
	return sig, account, nil
}

// SendTransaction sends tx from the active wallet.
func (m *Manager) SendTransaction(ctx context.Context, tx *types.TransactionRequest) (common.Hash, error) {
	a, _, err := m.activeAdapter()
	if err != nil {
		return common.Hash{}, err
	}
	tr, err := wallets.AsTransactor(a)
	if err != nil {
		return common.Hash{}, err
	}
	return tr.SendTransaction(ctx, tx)
}

func chainIDOf(c *types.Chain) uint64 {
	if c == nil {
		return 0
	}
	return c.ID
}
