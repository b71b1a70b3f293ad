// Package inapp is the embedded wallet adapter. Keys live in an Enclave, the
// adapter only keeps the session token, which the manager persists to
// reconnect without a prompt.
package inapp

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/chains"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
)

var log = logging.Logger("inapp")

const DefaultID types.WalletID = "inapp"

const Capabilities = types.CapGetAccounts | types.CapSignMessage | types.CapSwitchChain

type Config struct {
	ID             types.WalletID
	DefaultChain   uint64
	ConnectTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{ID: DefaultID, DefaultChain: 1, ConnectTimeout: time.Minute}
}

var (
	_ wallets.Adapter       = (*Adapter)(nil)
	_ wallets.Signer        = (*Adapter)(nil)
	_ wallets.SessionHolder = (*Adapter)(nil)
)

type Adapter struct {
	wallets.Emitter

	cfg      Config
	enclave  Enclave
	registry *chains.Registry

	lk      sync.Mutex
	session *Session
	account *types.Account
	chainID uint64
}

func New(cfg Config, enclave Enclave, registry *chains.Registry) *Adapter {
	if cfg.ID == "" {
		cfg.ID = DefaultID
	}
	if cfg.DefaultChain == 0 {
		cfg.DefaultChain = 1
	}
	if registry == nil {
		registry = chains.NewRegistry()
	}
	return &Adapter{cfg: cfg, enclave: enclave, registry: registry}
}

func (a *Adapter) ID() types.WalletID { return a.cfg.ID }

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

func (a *Adapter) SessionToken() string {
	a.lk.Lock()
	defer a.lk.Unlock()
	if a.session == nil {
		return ""
	}
	return a.session.Token
}

func (a *Adapter) Connect(ctx context.Context, opts wallets.ConnectOptions) (*types.Account, error) {
	chainID := opts.ChainID
	if chainID == 0 {
		chainID = a.cfg.DefaultChain
	}
	if _, err := a.registry.Get(chainID); err != nil {
		return nil, err
	}

	ctx, cancel := wallets.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()

	var (
		sess *Session
		err  error
	)
	switch {
	case opts.Silent && opts.SessionToken == "":
		return nil, errors.Wrap(types.ErrUserRejected, "no session to resume")
	case opts.SessionToken != "":
		sess, err = a.enclave.Resume(ctx, opts.SessionToken)
		if err != nil {
			return nil, a.mapError(ctx, err, "resume")
		}
	default:
		if opts.Identifier == "" {
			return nil, errors.Wrap(types.ErrUserRejected, "login identifier is required")
		}
		sess, err = a.enclave.Login(ctx, LoginOptions{Strategy: opts.Strategy, Identifier: opts.Identifier})
		if err != nil {
			return nil, a.mapError(ctx, err, "login")
		}
	}

	account := types.NewAccount(a.cfg.ID, sess.Address)
	a.lk.Lock()
	a.session = sess
	a.account = account
	a.chainID = chainID
	a.lk.Unlock()

	log.Infow("in-app wallet connected", "wallet", a.cfg.ID, "account", account.Address.Hex(), "resumed", opts.SessionToken != "")
	return account, nil
}

func (a *Adapter) mapError(ctx context.Context, err error, op string) error {
	err = wallets.MapContextErr(ctx, err, op)
	if types.IsRecoverable(err) {
		return err
	}
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
		return errors.Wrapf(types.ErrUserRejected, "%s: %v", op, err)
	}
	return errors.Wrapf(types.ErrUnavailable, "%s: %v", op, err)
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.lk.Lock()
	sess := a.session
	a.session = nil
	a.account = nil
	a.chainID = 0
	a.lk.Unlock()

	if sess == nil {
		return nil
	}
	if err := a.enclave.Logout(ctx, sess.Token); err != nil {
		log.Warnf("logout %s: %v", a.cfg.ID, err)
	}
	return nil
}

// SwitchChain needs no round trip, the enclave key signs for every chain.
func (a *Adapter) SwitchChain(ctx context.Context, chainID uint64) error {
	if a.Account() == nil {
		return errors.Wrapf(types.ErrNotConnected, "wallet %s", a.cfg.ID)
	}
	if _, err := a.registry.Get(chainID); err != nil {
		return err
	}
	a.lk.Lock()
	a.chainID = chainID
	a.lk.Unlock()
	return nil
}

// SignMessage signs msg the personal_sign way and returns a signature with
// v in {27, 28}.
func (a *Adapter) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	token := a.SessionToken()
	if token == "" {
		return nil, errors.Wrapf(types.ErrNotConnected, "wallet %s", a.cfg.ID)
	}
	sig, err := a.enclave.Sign(ctx, token, accounts.TextHash(msg))
	if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrSessionNotFound) {
		a.lk.Lock()
		a.session = nil
		a.account = nil
		a.chainID = 0
		a.lk.Unlock()
		a.Emit(types.AdapterEvent{Type: types.Disconnected, Wallet: a.cfg.ID, Err: a.mapError(ctx, err, "sign")})
	}
	if err != nil {
		return nil, a.mapError(ctx, err, "sign")
	}
	sig[64] += 27
	return sig, nil
}
