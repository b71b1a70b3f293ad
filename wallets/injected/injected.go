// Package injected adapts an EIP-1193 provider, the interface browser
// extensions inject into the page, to wallets.Adapter.
package injected

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/chains"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
)

var log = logging.Logger("injected")

const DefaultID types.WalletID = "injected"

const Capabilities = types.CapGetAccounts | types.CapSignMessage | types.CapSendTransaction | types.CapSwitchChain

type Config struct {
	ID             types.WalletID
	ConnectTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{ID: DefaultID, ConnectTimeout: 2 * time.Minute}
}

var (
	_ wallets.Adapter    = (*Adapter)(nil)
	_ wallets.Signer     = (*Adapter)(nil)
	_ wallets.Transactor = (*Adapter)(nil)
)

type Adapter struct {
	wallets.Emitter

	cfg      Config
	provider Provider
	registry *chains.Registry

	lk      sync.Mutex
	account *types.Account
	chainID uint64
	unsubs  []func()
}

func New(cfg Config, provider Provider, registry *chains.Registry) *Adapter {
	if cfg.ID == "" {
		cfg.ID = DefaultID
	}
	if registry == nil {
		registry = chains.NewRegistry()
	}
	return &Adapter{cfg: cfg, provider: provider, registry: registry}
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

func (a *Adapter) Connect(ctx context.Context, opts wallets.ConnectOptions) (*types.Account, error) {
	if a.provider == nil {
		return nil, errors.Wrap(types.ErrUnavailable, "no injected provider")
	}
	ctx, cancel := wallets.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()

	method := "eth_requestAccounts"
	if opts.Silent {
		method = "eth_accounts"
	}
	addrs, err := a.requestAccounts(ctx, method)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, errors.Wrapf(types.ErrUserRejected, "%s returned no accounts", method)
	}

	chainID, err := a.requestChainID(ctx)
	if err != nil {
		return nil, err
	}
	if opts.ChainID != 0 && opts.ChainID != chainID {
		if err := a.switchChain(ctx, opts.ChainID); err != nil {
			return nil, err
		}
		chainID = opts.ChainID
	}

	account := types.NewAccount(a.cfg.ID, addrs[0])
	a.lk.Lock()
	a.account = account
	a.chainID = chainID
	a.attachLocked()
	a.lk.Unlock()

	log.Infow("injected wallet connected", "wallet", a.cfg.ID, "account", account.Address.Hex(), "chain", chainID)
	return account, nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.lk.Lock()
	connected := a.account != nil
	a.account = nil
	a.chainID = 0
	unsubs := a.unsubs
	a.unsubs = nil
	a.lk.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if !connected || a.provider == nil {
		return nil
	}
	// Not every provider implements EIP-2255 revocation.
	if _, err := a.provider.Request(ctx, "wallet_revokePermissions", map[string]interface{}{"eth_accounts": struct{}{}}); err != nil {
		log.Debugf("revoke permissions of %s: %v", a.cfg.ID, err)
	}
	return nil
}

func (a *Adapter) SwitchChain(ctx context.Context, chainID uint64) error {
	if a.Account() == nil {
		return errors.Wrapf(types.ErrNotConnected, "wallet %s", a.cfg.ID)
	}
	if err := a.switchChain(ctx, chainID); err != nil {
		return err
	}
	a.lk.Lock()
	a.chainID = chainID
	a.lk.Unlock()
	return nil
}

func (a *Adapter) switchChain(ctx context.Context, chainID uint64) error {
	param := map[string]string{"chainId": types.ChainIDHex(chainID)}
	_, err := a.provider.Request(ctx, "wallet_switchEthereumChain", param)
	if err == nil {
		return nil
	}
	if !hasCode(err, CodeUnrecognizedChain) {
		return mapError(ctx, err, "wallet_switchEthereumChain")
	}

	chain, err := a.registry.Get(chainID)
	if err != nil {
		return err
	}
	log.Infof("wallet %s does not know chain %d, adding it", a.cfg.ID, chainID)
	if _, err := a.provider.Request(ctx, "wallet_addEthereumChain", addChainParam(chain)); err != nil {
		if hasCode(err, CodeUserRejected) {
			return mapError(ctx, err, "wallet_addEthereumChain")
		}
		return errors.Wrapf(types.ErrUnsupportedChain, "add chain %d: %v", chainID, err)
	}
	return nil
}

type nativeCurrencyParam struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type addEthereumChainParam struct {
	ChainID           string              `json:"chainId"`
	ChainName         string              `json:"chainName"`
	NativeCurrency    nativeCurrencyParam `json:"nativeCurrency"`
	RPCUrls           []string            `json:"rpcUrls"`
	BlockExplorerUrls []string            `json:"blockExplorerUrls,omitempty"`
}

func addChainParam(c *types.Chain) addEthereumChainParam {
	p := addEthereumChainParam{
		ChainID:   c.IDHex(),
		ChainName: c.Name,
		NativeCurrency: nativeCurrencyParam{
			Name:     c.NativeCurrency.Name,
			Symbol:   c.NativeCurrency.Symbol,
			Decimals: c.NativeCurrency.Decimals,
		},
		RPCUrls: c.RPC,
	}
	for _, e := range c.Explorers {
		p.BlockExplorerUrls = append(p.BlockExplorerUrls, e.URL)
	}
	return p
}

func (a *Adapter) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	account := a.Account()
	if account == nil {
		return nil, errors.Wrapf(types.ErrNotConnected, "wallet %s", a.cfg.ID)
	}
	raw, err := a.provider.Request(ctx, "personal_sign", hexutil.Encode(msg), account.Address.Hex())
	if err != nil {
		return nil, mapError(ctx, err, "personal_sign")
	}
	var sig hexutil.Bytes
	if err := json.Unmarshal(raw, &sig); err != nil {
		return nil, errors.Wrapf(types.ErrUnavailable, "malformed signature: %v", err)
	}
	return sig, nil
}

func (a *Adapter) SendTransaction(ctx context.Context, tx *types.TransactionRequest) (common.Hash, error) {
	account := a.Account()
	if account == nil {
		return common.Hash{}, errors.Wrapf(types.ErrNotConnected, "wallet %s", a.cfg.ID)
	}
	req := *tx
	if req.From == (common.Address{}) {
		req.From = account.Address
	}
	raw, err := a.provider.Request(ctx, "eth_sendTransaction", &req)
	if err != nil {
		return common.Hash{}, mapError(ctx, err, "eth_sendTransaction")
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return common.Hash{}, errors.Wrapf(types.ErrUnavailable, "malformed transaction hash: %v", err)
	}
	return hash, nil
}

func (a *Adapter) requestAccounts(ctx context.Context, method string) ([]common.Address, error) {
	raw, err := a.provider.Request(ctx, method)
	if err != nil {
		return nil, mapError(ctx, err, method)
	}
	addrs, err := parseAccounts(raw)
	if err != nil {
		return nil, errors.Wrapf(types.ErrUnavailable, "%s: %v", method, err)
	}
	return addrs, nil
}

func (a *Adapter) requestChainID(ctx context.Context) (uint64, error) {
	raw, err := a.provider.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, mapError(ctx, err, "eth_chainId")
	}
	id, err := parseChainID(raw)
	if err != nil {
		return 0, errors.Wrapf(types.ErrUnavailable, "eth_chainId: %v", err)
	}
	return id, nil
}

func parseAccounts(raw json.RawMessage) ([]common.Address, error) {
	var addrs []common.Address
	if err := json.Unmarshal(raw, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

func parseChainID(raw json.RawMessage) (uint64, error) {
	var id hexutil.Uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// attachLocked registers the provider listeners once per connection.
func (a *Adapter) attachLocked() {
	if a.unsubs != nil {
		return
	}
	a.unsubs = []func(){
		a.provider.On(string(types.AccountsChanged), a.onAccountsChanged),
		a.provider.On(string(types.ChainChanged), a.onChainChanged),
		a.provider.On(string(types.Disconnected), a.onDisconnect),
	}
}

func (a *Adapter) onAccountsChanged(payload json.RawMessage) {
	addrs, err := parseAccounts(payload)
	if err != nil {
		log.Warnf("%s: ignore malformed accountsChanged payload: %v", a.cfg.ID, err)
		return
	}
	accounts := make([]*types.Account, 0, len(addrs))
	for _, addr := range addrs {
		accounts = append(accounts, types.NewAccount(a.cfg.ID, addr))
	}

	a.lk.Lock()
	if len(accounts) == 0 {
		a.account = nil
	} else {
		a.account = accounts[0]
	}
	a.lk.Unlock()

	a.Emit(types.AdapterEvent{Type: types.AccountsChanged, Wallet: a.cfg.ID, Accounts: accounts})
}

func (a *Adapter) onChainChanged(payload json.RawMessage) {
	id, err := parseChainID(payload)
	if err != nil {
		log.Warnf("%s: ignore malformed chainChanged payload: %v", a.cfg.ID, err)
		return
	}
	a.lk.Lock()
	a.chainID = id
	a.lk.Unlock()

	a.Emit(types.AdapterEvent{Type: types.ChainChanged, Wallet: a.cfg.ID, ChainID: id})
}

func (a *Adapter) onDisconnect(payload json.RawMessage) {
	var rpcErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	var cause error = errors.Wrap(types.ErrUnavailable, "provider disconnected")
	if len(payload) > 0 && json.Unmarshal(payload, &rpcErr) == nil && rpcErr.Code != 0 {
		cause = mapError(context.Background(), &ProviderRPCError{Code: rpcErr.Code, Message: rpcErr.Message}, "disconnect")
	}

	a.lk.Lock()
	a.account = nil
	a.chainID = 0
	a.lk.Unlock()

	a.Emit(types.AdapterEvent{Type: types.Disconnected, Wallet: a.cfg.ID, Err: cause})
}
