package connmgr

import (
	"context"

	"github.com/ipfs-force-community/sophon-connector/storage"
	"github.com/ipfs-force-community/sophon-connector/types"
)

// The connected list is read under persistLk so the last writer always
// stores the newest set.
func (m *Manager) connectedSnapshot() []types.WalletID {
	m.lk.Lock()
	defer m.lk.Unlock()
	return append([]types.WalletID(nil), m.connOrder...)
}

// persistConnect stores the outcome of a connect unless rec was dropped or
// replaced before the writes ran.
func (m *Manager) persistConnect(ctx context.Context, id types.WalletID, rec *walletRecord, session string, activate bool) {
	m.persistLk.Lock()
	defer m.persistLk.Unlock()

	m.lk.Lock()
	if m.connected[id] != rec {
		m.lk.Unlock()
		return
	}
	active := m.activeID == id
	ids := append([]types.WalletID(nil), m.connOrder...)
	m.lk.Unlock()

	if activate && active {
		if err := m.storage.SetItem(ctx, m.keys.ActiveWallet(), string(id)); err != nil {
			log.Errorf("persist active wallet %s: %v", id, err)
		}
	}
	if err := storage.SetWalletIDs(ctx, m.storage, m.keys.ConnectedWallets(), ids); err != nil {
		log.Errorf("persist connected wallets: %v", err)
	}
	if session != "" {
		if err := m.storage.SetItem(ctx, m.keys.Session(id), session); err != nil {
			log.Errorf("persist session of %s: %v", id, err)
		}
	}
}

func (m *Manager) persistDisconnect(ctx context.Context, id types.WalletID) {
	m.persistLk.Lock()
	defer m.persistLk.Unlock()

	if err := storage.SetWalletIDs(ctx, m.storage, m.keys.ConnectedWallets(), m.connectedSnapshot()); err != nil {
		log.Errorf("persist connected wallets: %v", err)
	}
	if err := m.storage.RemoveItem(ctx, m.keys.Session(id)); err != nil {
		log.Errorf("remove session of %s: %v", id, err)
	}
	m.clearActiveLocked(ctx, id)
}

// clearActiveLocked removes the persisted active id only when it still names id.
func (m *Manager) clearActiveLocked(ctx context.Context, id types.WalletID) {
	cur, ok, err := m.storage.GetItem(ctx, m.keys.ActiveWallet())
	if err != nil {
		log.Errorf("read active wallet: %v", err)
		return
	}
	if !ok || types.WalletID(cur) != id {
		return
	}
	if err := m.storage.RemoveItem(ctx, m.keys.ActiveWallet()); err != nil {
		log.Errorf("clear active wallet %s: %v", id, err)
	}
}

func (m *Manager) persistActive(ctx context.Context, id types.WalletID) {
	m.persistLk.Lock()
	defer m.persistLk.Unlock()

	m.lk.Lock()
	current := m.activeID
	m.lk.Unlock()
	if current != id {
		// superseded by a later selection
		return
	}
	if err := m.storage.SetItem(ctx, m.keys.ActiveWallet(), string(id)); err != nil {
		log.Errorf("persist active wallet %s: %v", id, err)
	}
}
