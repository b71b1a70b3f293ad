package connmgr

import (
	"github.com/ipfs-force-community/sophon-connector/store"
	"github.com/ipfs-force-community/sophon-connector/types"
)

// ActiveState is the one combined value behind the active wallet, account and
// chain, so switching wallets is a single notification. All fields are zero
// when no wallet is active.
type ActiveState struct {
	WalletID types.WalletID
	Account  *types.Account
	Chain    *types.Chain
}

func (s ActiveState) IsEmpty() bool { return s.WalletID == "" }

func activeEqual(a, b ActiveState) bool {
	return a.WalletID == b.WalletID && accountEqual(a.Account, b.Account) && chainEqual(a.Chain, b.Chain)
}

func accountEqual(a, b *types.Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Address == b.Address && a.Wallet == b.Wallet
}

func chainEqual(a, b *types.Chain) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Name == b.Name
}

func idsEqual(a, b []types.WalletID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func statusesEqual(a, b map[types.WalletID]types.Status) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// versioned tags a published value with the manager sequence it was computed
// at. Stores drop anything older than what they hold, so publishing outside
// the manager lock can never regress a store.
type versioned[T any] struct {
	seq uint64
	v   T
}

func newVersioned[T any](initial T) *store.Store[versioned[T]] {
	return store.New(versioned[T]{v: initial}, store.WithEqual(func(cur, next versioned[T]) bool {
		return next.seq <= cur.seq
	}))
}

func unwrap[T any](v versioned[T]) T { return v.v }
