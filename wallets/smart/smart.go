// Package smart wraps a personal wallet into a counterfactual smart-contract
// account. The account address is derived deterministically from the factory
// and the owner, it exists before the contract is ever deployed.
package smart

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
)

var log = logging.Logger("smart")

const DefaultID types.WalletID = "smart"

type Config struct {
	ID      types.WalletID
	Factory common.Address
	// InitCodeHash is keccak256 of the account proxy creation code.
	InitCodeHash common.Hash
	// SponsoredChains restricts the account to chains with a paymaster,
	// empty means every chain.
	SponsoredChains []uint64
}

var (
	_ wallets.Adapter       = (*Adapter)(nil)
	_ wallets.Signer        = (*Adapter)(nil)
	_ wallets.SessionHolder = (*Adapter)(nil)
)

type Adapter struct {
	wallets.Emitter

	cfg       Config
	personal  wallets.Adapter
	sponsored map[uint64]struct{}

	lk      sync.Mutex
	owner   *types.Account
	account *types.Account
	unsub   func()
}

// New wraps personal, which the adapter owns from then on: it should not be
// registered with the manager on its own.
func New(cfg Config, personal wallets.Adapter) *Adapter {
	if cfg.ID == "" {
		cfg.ID = DefaultID
	}
	a := &Adapter{cfg: cfg, personal: personal, sponsored: make(map[uint64]struct{})}
	for _, id := range cfg.SponsoredChains {
		a.sponsored[id] = struct{}{}
	}
	return a
}

// AccountAddress is the CREATE2 address of owner's account.
func AccountAddress(factory common.Address, initCodeHash common.Hash, owner common.Address) common.Address {
	salt := crypto.Keccak256Hash(common.LeftPadBytes(owner.Bytes(), 32))
	return crypto.CreateAddress2(factory, salt, initCodeHash.Bytes())
}

func (a *Adapter) ID() types.WalletID { return a.cfg.ID }

func (a *Adapter) Capabilities() types.Capabilities {
	return types.CapGetAccounts | types.CapSwitchChain | (a.personal.Capabilities() & types.CapSignMessage)
}

func (a *Adapter) Personal() wallets.Adapter { return a.personal }

func (a *Adapter) Account() *types.Account {
	a.lk.Lock()
	defer a.lk.Unlock()
	return a.account
}

// Owner is the personal account controlling the smart account.
func (a *Adapter) Owner() *types.Account {
	a.lk.Lock()
	defer a.lk.Unlock()
	return a.owner
}

func (a *Adapter) ChainID() uint64 {
	if a.Account() == nil {
		return 0
	}
	return a.personal.ChainID()
}

func (a *Adapter) SessionToken() string {
	if h, ok := a.personal.(wallets.SessionHolder); ok {
		return h.SessionToken()
	}
	return ""
}

func (a *Adapter) isSponsored(chainID uint64) bool {
	if len(a.sponsored) == 0 {
		return true
	}
	_, ok := a.sponsored[chainID]
	return ok
}

func (a *Adapter) Connect(ctx context.Context, opts wallets.ConnectOptions) (*types.Account, error) {
	if opts.ChainID != 0 && !a.isSponsored(opts.ChainID) {
		return nil, errors.Wrapf(types.ErrUnsupportedChain, "chain %d is not sponsored", opts.ChainID)
	}
	owner, err := a.personal.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if chainID := a.personal.ChainID(); !a.isSponsored(chainID) {
		_ = a.personal.Disconnect(ctx)
		return nil, errors.Wrapf(types.ErrUnsupportedChain, "personal wallet is on chain %d which is not sponsored", chainID)
	}

	account := a.derive(owner)
	a.lk.Lock()
	a.owner = owner
	a.account = account
	if a.unsub == nil {
		a.unsub = a.personal.Subscribe(a.onPersonalEvent)
	}
	a.lk.Unlock()

	log.Infow("smart account connected", "wallet", a.cfg.ID, "account", account.Address.Hex(), "owner", owner.Address.Hex())
	return account, nil
}

func (a *Adapter) derive(owner *types.Account) *types.Account {
	return types.NewAccount(a.cfg.ID, AccountAddress(a.cfg.Factory, a.cfg.InitCodeHash, owner.Address))
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.lk.Lock()
	unsub := a.unsub
	a.unsub = nil
	a.owner = nil
	a.account = nil
	a.lk.Unlock()

	if unsub != nil {
		unsub()
	}
	return a.personal.Disconnect(ctx)
}

func (a *Adapter) SwitchChain(ctx context.Context, chainID uint64) error {
	if a.Account() == nil {
		return errors.Wrapf(types.ErrNotConnected, "wallet %s", a.cfg.ID)
	}
	if !a.isSponsored(chainID) {
		return errors.Wrapf(types.ErrUnsupportedChain, "chain %d is not sponsored", chainID)
	}
	if err := wallets.Require(a.personal, types.CapSwitchChain); err != nil {
		return err
	}
	return a.personal.SwitchChain(ctx, chainID)
}

// SignMessage returns the owner's signature, which the account contract
// validates through ERC-1271.
func (a *Adapter) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if a.Account() == nil {
		return nil, errors.Wrapf(types.ErrNotConnected, "wallet %s", a.cfg.ID)
	}
	signer, err := wallets.AsSigner(a.personal)
	if err != nil {
		return nil, err
	}
	return signer.SignMessage(ctx, msg)
}

func (a *Adapter) onPersonalEvent(ev types.AdapterEvent) {
	out := types.AdapterEvent{Type: ev.Type, Wallet: a.cfg.ID, ChainID: ev.ChainID, Err: ev.Err}

	a.lk.Lock()
	switch ev.Type {
	case types.AccountsChanged:
		for _, owner := range ev.Accounts {
			out.Accounts = append(out.Accounts, a.derive(owner))
		}
		if len(ev.Accounts) == 0 {
			a.owner, a.account = nil, nil
		} else {
			a.owner, a.account = ev.Accounts[0], out.Accounts[0]
		}
	case types.Disconnected:
		a.owner, a.account = nil, nil
	}
	a.lk.Unlock()

	a.Emit(out)
}
