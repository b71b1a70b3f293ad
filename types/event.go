package types

// AdapterEventType enumerates backend-initiated notifications.
type AdapterEventType string

const (
	AccountsChanged AdapterEventType = "accountsChanged"
	ChainChanged    AdapterEventType = "chainChanged"
	Disconnected    AdapterEventType = "disconnect"
)

// AdapterEvent is delivered by an adapter to its subscribers whenever the
// backend changes state on its own, e.g. the user picks another account in
// the extension.
type AdapterEvent struct {
	Type     AdapterEventType
	Wallet   WalletID
	Accounts []*Account
	ChainID  uint64
	Err      error
}
