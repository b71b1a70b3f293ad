package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ipfs-force-community/sophon-connector/connmgr"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
	"github.com/ipfs-force-community/sophon-connector/wallets/relay"
)

// Namespace of the json rpc methods.
const Namespace = "Connector"

// WalletInfo describes one registered wallet. Account and Chain are set while
// it is connected.
type WalletInfo struct {
	ID           types.WalletID
	Capabilities []string
	Status       types.Status
	Active       bool
	Account      *types.Account
	Chain        *types.Chain
}

// Balance is the native balance of the active account. Amount is in base
// units, Value in display units of Symbol.
type Balance struct {
	Account *types.Account
	ChainID uint64
	Symbol  string
	Amount  string
	Value   string
}

type SignResult struct {
	Account   *types.Account
	Signature []byte
}

type ConnectorStruct struct {
	IConnectorStruct
	IRelayStruct
}

var _ IConnectorAPI = (*ConnectorStruct)(nil)
var _ IRelayAPI = (*ConnectorStruct)(nil)

type IConnectorStruct struct {
	Internal struct {
		ListWallets     func(ctx context.Context) ([]*WalletInfo, error)                                                  `perm:"read"`
		WalletState     func(ctx context.Context, id types.WalletID) (*WalletInfo, error)                                 `perm:"read"`
		ActiveState     func(ctx context.Context) (*connmgr.ActiveState, error)                                           `perm:"read"`
		ListChains      func(ctx context.Context) ([]*types.Chain, error)                                                 `perm:"read"`
		ActiveBalance   func(ctx context.Context) (*Balance, error)                                                       `perm:"read"`
		Connect         func(ctx context.Context, id types.WalletID, opts wallets.ConnectOptions) (*types.Account, error) `perm:"admin"`
		Disconnect      func(ctx context.Context, id types.WalletID) error                                                `perm:"admin"`
		SetActiveWallet func(ctx context.Context, id types.WalletID) error                                                `perm:"admin"`
		SwitchChain     func(ctx context.Context, chainID uint64) error                                                   `perm:"admin"`
		SignMessage     func(ctx context.Context, msg []byte) (*SignResult, error)                                        `perm:"sign"`
		SendTransaction func(ctx context.Context, tx *types.TransactionRequest) (common.Hash, error)                      `perm:"sign"`
	}
}

func (s *IConnectorStruct) ListWallets(ctx context.Context) ([]*WalletInfo, error) {
	return s.Internal.ListWallets(ctx)
}

func (s *IConnectorStruct) WalletState(ctx context.Context, id types.WalletID) (*WalletInfo, error) {
	return s.Internal.WalletState(ctx, id)
}

func (s *IConnectorStruct) ActiveState(ctx context.Context) (*connmgr.ActiveState, error) {
	return s.Internal.ActiveState(ctx)
}

func (s *IConnectorStruct) ListChains(ctx context.Context) ([]*types.Chain, error) {
	return s.Internal.ListChains(ctx)
}

func (s *IConnectorStruct) ActiveBalance(ctx context.Context) (*Balance, error) {
	return s.Internal.ActiveBalance(ctx)
}

func (s *IConnectorStruct) Connect(ctx context.Context, id types.WalletID, opts wallets.ConnectOptions) (*types.Account, error) {
	return s.Internal.Connect(ctx, id, opts)
}

func (s *IConnectorStruct) Disconnect(ctx context.Context, id types.WalletID) error {
	return s.Internal.Disconnect(ctx, id)
}

func (s *IConnectorStruct) SetActiveWallet(ctx context.Context, id types.WalletID) error {
	return s.Internal.SetActiveWallet(ctx, id)
}

func (s *IConnectorStruct) SwitchChain(ctx context.Context, chainID uint64) error {
	return s.Internal.SwitchChain(ctx, chainID)
}

func (s *IConnectorStruct) SignMessage(ctx context.Context, msg []byte) (*SignResult, error) {
	return s.Internal.SignMessage(ctx, msg)
}

func (s *IConnectorStruct) SendTransaction(ctx context.Context, tx *types.TransactionRequest) (common.Hash, error) {
	return s.Internal.SendTransaction(ctx, tx)
}

type IRelayStruct struct {
	Internal struct {
		ListRelaySessions func(ctx context.Context) ([]*relay.SessionDetail, error) `perm:"admin"`

		ListenRelaySession func(ctx context.Context, policy *relay.SessionPolicy) (<-chan *types.RequestEvent, error) `perm:"read"`
		ResponseRelayEvent func(ctx context.Context, resp *types.ResponseEvent) error                                 `perm:"read"`
		NotifyRelayEvent   func(ctx context.Context, channelID uuid.UUID, ev *types.SessionEvent) error               `perm:"read"`
	}
}

func (s *IRelayStruct) ListRelaySessions(ctx context.Context) ([]*relay.SessionDetail, error) {
	return s.Internal.ListRelaySessions(ctx)
}

func (s *IRelayStruct) ListenRelaySession(ctx context.Context, policy *relay.SessionPolicy) (<-chan *types.RequestEvent, error) {
	return s.Internal.ListenRelaySession(ctx, policy)
}

func (s *IRelayStruct) ResponseRelayEvent(ctx context.Context, resp *types.ResponseEvent) error {
	return s.Internal.ResponseRelayEvent(ctx, resp)
}

func (s *IRelayStruct) NotifyRelayEvent(ctx context.Context, channelID uuid.UUID, ev *types.SessionEvent) error {
	return s.Internal.NotifyRelayEvent(ctx, channelID, ev)
}
