package relay

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ipfs-force-community/sophon-connector/types"
)

// InitConnect is the first event of every session. It carries no Result and
// expects no response.
const InitConnect = "InitConnect"

// SessionPolicy is sent by a wallet app when it opens a session.
type SessionPolicy struct {
	// Topic is the pairing topic the app scanned, it binds the session to a
	// relay adapter.
	Topic string
	// Name is shown to the user, e.g. "Rainbow".
	Name string
}

type ConnectedCompleted struct {
	ChannelID uuid.UUID
}

type SessionDetail struct {
	ChannelID  uuid.UUID
	Topic      string
	Name       string
	IP         string
	Accounts   []common.Address
	ChainID    uint64
	CreateTime time.Time
}

// ServiceProvider is the hub surface a wallet app talks to. Hub implements it
// in process and the rpc client implements it remotely.
type ServiceProvider interface {
	ListenRelaySession(ctx context.Context, policy *SessionPolicy) (<-chan *types.RequestEvent, error)
	ResponseRelayEvent(ctx context.Context, resp *types.ResponseEvent) error
	NotifyRelayEvent(ctx context.Context, channelID uuid.UUID, ev *types.SessionEvent) error
}

// WalletProcessor is the wallet app's own key handling, driven by Client.
type WalletProcessor interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	SignMessage(ctx context.Context, signer common.Address, msg []byte) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.TransactionRequest) (common.Hash, error)
}
