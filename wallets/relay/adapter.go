package relay

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
)

const DefaultID types.WalletID = "relay"

const Capabilities = types.CapGetAccounts | types.CapSignMessage | types.CapSendTransaction | types.CapSwitchChain

type Config struct {
	ID    types.WalletID
	Topic string
	// ConnectTimeout bounds an interactive connect, pairing included.
	ConnectTimeout time.Duration
}

var (
	_ wallets.Adapter    = (*Adapter)(nil)
	_ wallets.Signer     = (*Adapter)(nil)
	_ wallets.Transactor = (*Adapter)(nil)
)

// Adapter drives the newest live session of one pairing topic.
type Adapter struct {
	wallets.Emitter

	cfg Config
	hub *Hub

	lk      sync.Mutex
	channel *types.ChannelInfo
	account *types.Account
	chainID uint64
	unwatch func()
}

func New(cfg Config, hub *Hub) *Adapter {
	if cfg.ID == "" {
		cfg.ID = DefaultID
	}
	if cfg.Topic == "" {
		cfg.Topic = string(cfg.ID)
	}
	return &Adapter{cfg: cfg, hub: hub}
}

func (a *Adapter) ID() types.WalletID { return a.cfg.ID }

func (a *Adapter) Topic() string { return a.cfg.Topic }

func (a *Adapter) Capabilities() types.Capabilities { return Capabilities }

func (a *Adapter) Account() *types.Account {
	a.lk.Lock()
	defer a.lk.Unlock()
	return a.account
}

func (a *Adapter) ChainID() uint64 {
	a.lk.Lock()
	defer a.lk.Unlock()
	return a.chainID
}

func (a *Adapter) Connect(ctx context.Context, opts wallets.ConnectOptions) (*types.Account, error) {
	ctx, cancel := wallets.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()

	session := a.hub.sessions.latest(a.cfg.Topic)
	if session == nil {
		if opts.Silent {
			return nil, errors.Wrapf(types.ErrUnavailable, "no live session for topic %s", a.cfg.Topic)
		}
		var err error
		if session, err = a.hub.waitSession(ctx, a.cfg.Topic); err != nil {
			return nil, mapError(ctx, err, "wait for pairing")
		}
	}
	channel := session.ChannelInfo

	method := "eth_requestAccounts"
	if opts.Silent {
		method = "eth_accounts"
	}
	var addrs []common.Address
	if err := a.hub.request(ctx, channel, method, nil, &addrs); err != nil {
		return nil, mapError(ctx, err, method)
	}
	if len(addrs) == 0 {
		return nil, errors.Wrapf(types.ErrUserRejected, "%s returned no accounts", method)
	}

	var chainID hexutil.Uint64
	if err := a.hub.request(ctx, channel, "eth_chainId", nil, &chainID); err != nil {
		return nil, mapError(ctx, err, "eth_chainId")
	}
	if opts.ChainID != 0 && opts.ChainID != uint64(chainID) {
		if err := a.switchChain(ctx, channel, opts.ChainID); err != nil {
			return nil, err
		}
		chainID = hexutil.Uint64(opts.ChainID)
	}
	session.setState(addrs, uint64(chainID))

	account := types.NewAccount(a.cfg.ID, addrs[0])
	a.lk.Lock()
	a.channel = channel
	a.account = account
	a.chainID = uint64(chainID)
	if a.unwatch == nil {
		a.unwatch = a.hub.sessions.watch(a.cfg.Topic, a.onTopicEvent)
	}
	a.lk.Unlock()

	log.Infow("relay wallet connected", "wallet", a.cfg.ID, "topic", a.cfg.Topic, "channel", channel.ChannelID.String(), "account", account.Address.Hex())
	return account, nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.lk.Lock()
	channel := a.channel
	unwatch := a.unwatch
	a.channel = nil
	a.account = nil
	a.chainID = 0
	a.unwatch = nil
	a.lk.Unlock()

	if unwatch != nil {
		unwatch()
	}
	if channel != nil && !channel.Closed() {
		a.hub.push(channel, "wallet_disconnect", nil)
	}
	return nil
}

func (a *Adapter) current() (*types.ChannelInfo, *types.Account, error) {
	a.lk.Lock()
	defer a.lk.Unlock()
	if a.channel == nil || a.account == nil {
		return nil, nil, errors.Wrapf(types.ErrNotConnected, "wallet %s", a.cfg.ID)
	}
	return a.channel, a.account, nil
}

func (a *Adapter) SwitchChain(ctx context.Context, chainID uint64) error {
	channel, _, err := a.current()
	if err != nil {
		return err
	}
	if err := a.switchChain(ctx, channel, chainID); err != nil {
		return err
	}
	a.lk.Lock()
	if a.channel == channel {
		a.chainID = chainID
	}
	a.lk.Unlock()
	if s, err := a.hub.sessions.get(channel.ChannelID); err == nil {
		s.setState(nil, chainID)
	}
	return nil
}

func (a *Adapter) switchChain(ctx context.Context, channel *types.ChannelInfo, chainID uint64) error {
	param := map[string]string{"chainId": types.ChainIDHex(chainID)}
	if err := a.hub.request(ctx, channel, "wallet_switchEthereumChain", []interface{}{param}, nil); err != nil {
		return mapError(ctx, err, "wallet_switchEthereumChain")
	}
	return nil
}

func (a *Adapter) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	channel, account, err := a.current()
	if err != nil {
		return nil, err
	}
	var sig hexutil.Bytes
	params := []interface{}{hexutil.Encode(msg), account.Address.Hex()}
	if err := a.hub.request(ctx, channel, "personal_sign", params, &sig); err != nil {
		return nil, mapError(ctx, err, "personal_sign")
	}
	return sig, nil
}

func (a *Adapter) SendTransaction(ctx context.Context, tx *types.TransactionRequest) (common.Hash, error) {
	channel, account, err := a.current()
	if err != nil {
		return common.Hash{}, err
	}
	req := *tx
	if req.From == (common.Address{}) {
		req.From = account.Address
	}
	var hash common.Hash
	if err := a.hub.request(ctx, channel, "eth_sendTransaction", []interface{}{&req}, &hash); err != nil {
		return common.Hash{}, mapError(ctx, err, "eth_sendTransaction")
	}
	return hash, nil
}

// mapError keeps taxonomy errors from the wallet app and folds everything
// else into types.ErrUnavailable.
func mapError(ctx context.Context, err error, op string) error {
	err = wallets.MapContextErr(ctx, err, op)
	if types.IsRecoverable(err) || errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Wrapf(types.ErrUnavailable, "%s: %v", op, err)
}

func (a *Adapter) onTopicEvent(ev watchEvent) {
	a.lk.Lock()
	if a.channel == nil || ev.Channel.ChannelID != a.channel.ChannelID || ev.Opened {
		a.lk.Unlock()
		return
	}

	var out types.AdapterEvent
	switch {
	case ev.Closed:
		a.channel, a.account, a.chainID = nil, nil, 0
		out = types.AdapterEvent{Type: types.Disconnected, Wallet: a.cfg.ID, Err: errors.Wrapf(types.ErrUnavailable, "session %s closed", ev.Channel.ChannelID)}
	case ev.Session.Type == types.AccountsChanged:
		addrs, err := parseAddresses(ev.Session.Accounts)
		if err != nil {
			a.lk.Unlock()
			log.Warnf("ignore accountsChanged on session %s: %v", ev.Channel.ChannelID, err)
			return
		}
		accounts := make([]*types.Account, 0, len(addrs))
		for _, addr := range addrs {
			accounts = append(accounts, types.NewAccount(a.cfg.ID, addr))
		}
		if len(accounts) == 0 {
			a.account = nil
		} else {
			a.account = accounts[0]
		}
		out = types.AdapterEvent{Type: types.AccountsChanged, Wallet: a.cfg.ID, Accounts: accounts}
	case ev.Session.Type == types.ChainChanged:
		a.chainID = ev.Session.ChainID
		out = types.AdapterEvent{Type: types.ChainChanged, Wallet: a.cfg.ID, ChainID: ev.Session.ChainID}
	case ev.Session.Type == types.Disconnected:
		a.channel, a.account, a.chainID = nil, nil, 0
		out = types.AdapterEvent{Type: types.Disconnected, Wallet: a.cfg.ID}
	default:
		a.lk.Unlock()
		return
	}
	a.lk.Unlock()

	a.Emit(out)
}
