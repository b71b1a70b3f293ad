package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ipfs-force-community/sophon-connector/chains"
	"github.com/ipfs-force-community/sophon-connector/connmgr"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
	"github.com/ipfs-force-community/sophon-connector/wallets/relay"
)

type IConnectorAPI interface {
	ListWallets(ctx context.Context) ([]*WalletInfo, error)
	WalletState(ctx context.Context, id types.WalletID) (*WalletInfo, error)
	ActiveState(ctx context.Context) (*connmgr.ActiveState, error)
	ListChains(ctx context.Context) ([]*types.Chain, error)
	ActiveBalance(ctx context.Context) (*Balance, error)
	Connect(ctx context.Context, id types.WalletID, opts wallets.ConnectOptions) (*types.Account, error)
	Disconnect(ctx context.Context, id types.WalletID) error
	SetActiveWallet(ctx context.Context, id types.WalletID) error
	SwitchChain(ctx context.Context, chainID uint64) error
	SignMessage(ctx context.Context, msg []byte) (*SignResult, error)
	SendTransaction(ctx context.Context, tx *types.TransactionRequest) (common.Hash, error)
}

type IRelayAPI interface {
	relay.ServiceProvider
	ListRelaySessions(ctx context.Context) ([]*relay.SessionDetail, error)
}

var _ IConnectorAPI = (*ConnectorAPIImpl)(nil)
var _ IRelayAPI = (*ConnectorAPIImpl)(nil)

// ConnectorAPIImpl serves the manager and, when enabled, the relay hub. Errors
// leave it with their taxonomy code attached.
type ConnectorAPIImpl struct {
	mgr *connmgr.Manager
	hub *relay.Hub
}

// NewConnectorAPIImpl builds the api, hub may be nil when relay sessions are
// disabled.
func NewConnectorAPIImpl(mgr *connmgr.Manager, hub *relay.Hub) *ConnectorAPIImpl {
	return &ConnectorAPIImpl{mgr: mgr, hub: hub}
}

func (c *ConnectorAPIImpl) ListWallets(ctx context.Context) ([]*WalletInfo, error) {
	ids := c.mgr.Wallets()
	out := make([]*WalletInfo, 0, len(ids))
	for _, id := range ids {
		info, err := c.walletInfo(id)
		if err != nil {
			return nil, EncodeError(err)
		}
		out = append(out, info)
	}
	return out, nil
}

func (c *ConnectorAPIImpl) WalletState(ctx context.Context, id types.WalletID) (*WalletInfo, error) {
	info, err := c.walletInfo(id)
	return info, EncodeError(err)
}

func (c *ConnectorAPIImpl) walletInfo(id types.WalletID) (*WalletInfo, error) {
	state, status, err := c.mgr.WalletState(id)
	if err != nil {
		return nil, err
	}
	a, _ := c.mgr.Adapter(id)
	return &WalletInfo{
		ID:           id,
		Capabilities: a.Capabilities().Names(),
		Status:       status,
		Active:       c.mgr.Active().Get().WalletID == id,
		Account:      state.Account,
		Chain:        state.Chain,
	}, nil
}

func (c *ConnectorAPIImpl) ActiveState(ctx context.Context) (*connmgr.ActiveState, error) {
	state := c.mgr.Active().Get()
	return &state, nil
}

func (c *ConnectorAPIImpl) ListChains(ctx context.Context) ([]*types.Chain, error) {
	return c.mgr.Registry().List(), nil
}

func (c *ConnectorAPIImpl) ActiveBalance(ctx context.Context) (*Balance, error) {
	state := c.mgr.Active().Get()
	if state.IsEmpty() {
		return nil, EncodeError(types.ErrNoActiveWallet)
	}
	amount, err := chains.NativeBalance(ctx, state.Chain, state.Account.Address)
	if err != nil {
		return nil, EncodeError(err)
	}
	return &Balance{
		Account: state.Account,
		ChainID: state.Chain.ID,
		Symbol:  state.Chain.NativeCurrency.Symbol,
		Amount:  amount.String(),
		Value:   chains.FormatUnits(amount, state.Chain.NativeCurrency.Decimals).String(),
	}, nil
}

func (c *ConnectorAPIImpl) Connect(ctx context.Context, id types.WalletID, opts wallets.ConnectOptions) (*types.Account, error) {
	account, err := c.mgr.Connect(ctx, id, opts)
	return account, EncodeError(err)
}

func (c *ConnectorAPIImpl) Disconnect(ctx context.Context, id types.WalletID) error {
	return EncodeError(c.mgr.Disconnect(ctx, id))
}

func (c *ConnectorAPIImpl) SetActiveWallet(ctx context.Context, id types.WalletID) error {
	return EncodeError(c.mgr.SetActiveWallet(ctx, id))
}

func (c *ConnectorAPIImpl) SwitchChain(ctx context.Context, chainID uint64) error {
	return EncodeError(c.mgr.SwitchActiveWalletChain(ctx, chainID))
}

func (c *ConnectorAPIImpl) SignMessage(ctx context.Context, msg []byte) (*SignResult, error) {
	sig, account, err := c.mgr.SignMessage(ctx, msg)
	if err != nil {
		return nil, EncodeError(err)
	}
	return &SignResult{Account: account, Signature: sig}, nil
}

func (c *ConnectorAPIImpl) SendTransaction(ctx context.Context, tx *types.TransactionRequest) (common.Hash, error) {
	hash, err := c.mgr.SendTransaction(ctx, tx)
	return hash, EncodeError(err)
}

func (c *ConnectorAPIImpl) relayHub() (*relay.Hub, error) {
	if c.hub == nil {
		return nil, EncodeError(errRelayDisabled)
	}
	return c.hub, nil
}

func (c *ConnectorAPIImpl) ListRelaySessions(ctx context.Context) ([]*relay.SessionDetail, error) {
	hub, err := c.relayHub()
	if err != nil {
		return nil, err
	}
	return hub.ListRelaySessions(ctx)
}

func (c *ConnectorAPIImpl) ListenRelaySession(ctx context.Context, policy *relay.SessionPolicy) (<-chan *types.RequestEvent, error) {
	hub, err := c.relayHub()
	if err != nil {
		return nil, err
	}
	return hub.ListenRelaySession(ctx, policy)
}

func (c *ConnectorAPIImpl) ResponseRelayEvent(ctx context.Context, resp *types.ResponseEvent) error {
	hub, err := c.relayHub()
	if err != nil {
		return err
	}
	return hub.ResponseRelayEvent(ctx, resp)
}

func (c *ConnectorAPIImpl) NotifyRelayEvent(ctx context.Context, channelID uuid.UUID, ev *types.SessionEvent) error {
	hub, err := c.relayHub()
	if err != nil {
		return err
	}
	return hub.NotifyRelayEvent(ctx, channelID, ev)
}
