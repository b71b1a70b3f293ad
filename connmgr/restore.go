package connmgr

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/ipfs-force-community/sophon-connector/events"
	"github.com/ipfs-force-community/sophon-connector/metrics"
	"github.com/ipfs-force-community/sophon-connector/storage"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
)

// RestoreConnection silently reconnects the wallets persisted by an earlier
// run. The persisted active wallet is connected last and selected. Any wallet
// that cannot be restored is forgotten. It never fails.
func (m *Manager) RestoreConnection(ctx context.Context) {
	activeID, ok, err := m.storage.GetItem(ctx, m.keys.ActiveWallet())
	if err != nil {
		log.Warnf("read persisted active wallet: %v", err)
		ok = false
	}
	active := types.WalletID(activeID)
	if !ok {
		active = ""
	}
	persisted, err := storage.GetWalletIDs(ctx, m.storage, m.keys.ConnectedWallets())
	if err != nil {
		log.Warnf("read persisted wallets: %v", err)
	}

	queue := make([]types.WalletID, 0, len(persisted)+1)
	seen := make(map[types.WalletID]struct{}, len(persisted)+1)
	for _, id := range persisted {
		if _, dup := seen[id]; dup || id == active || id == "" {
			continue
		}
		seen[id] = struct{}{}
		queue = append(queue, id)
	}
	if active != "" {
		queue = append(queue, active)
	}
	if len(queue) == 0 {
		log.Debugf("nothing to restore")
		return
	}

	for _, id := range queue {
		m.restoreOne(ctx, id, id == active)
	}

	m.persistLk.Lock()
	defer m.persistLk.Unlock()
	conn := m.connectedSnapshot()
	if !idsEqual(conn, persisted) {
		if err := storage.SetWalletIDs(ctx, m.storage, m.keys.ConnectedWallets(), conn); err != nil {
			log.Errorf("persist connected wallets: %v", err)
		}
	}
}

func (m *Manager) restoreOne(ctx context.Context, id types.WalletID, activate bool) {
	session, _, err := m.storage.GetItem(ctx, m.keys.Session(id))
	if err != nil {
		log.Warnf("read session of %s: %v", id, err)
	}
	opts := wallets.ConnectOptions{Silent: true, SessionToken: session}

	account, err := m.connect(ctx, id, opts, activate)
	_ = stats.RecordWithTags(ctx, []tag.Mutator{
		tag.Upsert(metrics.WalletKey, string(id)),
		tag.Upsert(metrics.OutcomeKey, outcome(err)),
	}, metrics.Restore.M(1))
	if err != nil {
		log.Infow("restore failed", "wallet", id, "active", activate, "err", err)
		m.resetStatus(id)
		m.forget(ctx, id, activate)
		m.emit(ctx, &events.Event{Kind: events.RestoreFailed, Wallet: id, Code: types.Classify(err)})
		return
	}
	log.Infow("restored", "wallet", id, "account", account.Address.Hex(), "active", activate)
	m.emit(ctx, &events.Event{Kind: events.Restored, Wallet: id, Account: account.Address.Hex()})
}

func (m *Manager) forget(ctx context.Context, id types.WalletID, active bool) {
	m.persistLk.Lock()
	defer m.persistLk.Unlock()
	if err := m.storage.RemoveItem(ctx, m.keys.Session(id)); err != nil {
		log.Errorf("remove session of %s: %v", id, err)
	}
	if active {
		m.clearActiveLocked(ctx, id)
	}
}

// resetStatus drops a failed restore back to disconnected, restore never
// leaves a wallet in the error state.
func (m *Manager) resetStatus(id types.WalletID) {
	m.lk.Lock()
	if m.statuses[id] != types.StatusError {
		m.lk.Unlock()
		return
	}
	m.statuses[id] = types.StatusDisconnected
	publish := m.publishLocked()
	m.lk.Unlock()
	publish()
}
