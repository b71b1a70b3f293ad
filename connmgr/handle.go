package connmgr

import (
	"context"

	"github.com/ipfs-force-community/sophon-connector/events"
	"github.com/ipfs-force-community/sophon-connector/types"
)

// onAdapterEvent applies a backend-initiated change to the record it was
// subscribed for. Events for a record that has since been replaced or
// dropped are ignored.
func (m *Manager) onAdapterEvent(id types.WalletID, rec *walletRecord, ev types.AdapterEvent) {
	ctx := context.Background()
	switch ev.Type {
	case types.AccountsChanged:
		if len(ev.Accounts) == 0 || ev.Accounts[0] == nil {
			log.Infow("wallet reports no account, disconnecting", "wallet", id)
			m.dropStale(ctx, id, rec)
			return
		}
		account := ev.Accounts[0]
		m.lk.Lock()
		if m.connected[id] != rec {
			m.lk.Unlock()
			return
		}
		if accountEqual(rec.account, account) {
			m.lk.Unlock()
			return
		}
		rec.account = account
		publish := m.publishLocked()
		chain := rec.chain
		m.lk.Unlock()
		publish()

		log.Infow("account changed", "wallet", id, "account", account.Address.Hex())
		m.emit(ctx, &events.Event{Kind: events.AccountChanged, Wallet: id, Account: account.Address.Hex(), ChainID: chainIDOf(chain)})

	case types.ChainChanged:
		chain := m.registry.Lookup(ev.ChainID)
		m.lk.Lock()
		if m.connected[id] != rec {
			m.lk.Unlock()
			return
		}
		if chainEqual(rec.chain, chain) {
			m.lk.Unlock()
			return
		}
		rec.chain = chain
		publish := m.publishLocked()
		account := rec.account
		m.lk.Unlock()
		publish()

		log.Infow("chain changed by wallet", "wallet", id, "chain", ev.ChainID)
		m.emit(ctx, &events.Event{Kind: events.ChainChanged, Wallet: id, Account: accountString(account), ChainID: ev.ChainID})

	case types.Disconnected:
		log.Infow("wallet disconnected by backend", "wallet", id, "err", ev.Err)
		m.dropStale(ctx, id, rec)

	default:
		log.Debugf("ignore %s event from %s", ev.Type, id)
	}
}

func (m *Manager) dropStale(ctx context.Context, id types.WalletID, rec *walletRecord) {
	m.lk.Lock()
	current := m.connected[id] == rec
	m.lk.Unlock()
	if !current {
		return
	}
	if err := m.Disconnect(ctx, id); err != nil {
		log.Warnf("disconnect %s: %v", id, err)
	}
}
