package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// WalletID identifies a connectable backend, e.g. "injected" or "inapp".
type WalletID string

// Account is an address obtained from a wallet. The wallet field is a lookup
// key only, the wallet owns the lifecycle. Accounts are replaced wholesale
// when the backend reports an account change.
type Account struct {
	Address common.Address
	Wallet  WalletID
}

func NewAccount(wallet WalletID, addr common.Address) *Account {
	return &Account{Address: addr, Wallet: wallet}
}

func (a *Account) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s@%s", a.Address.Hex(), a.Wallet)
}

// Status is the connection lifecycle state of one wallet.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)
