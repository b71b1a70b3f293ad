package testhelper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets/injected"
)

var _ injected.Provider = (*MemProvider)(nil)

// MemProvider is an in-memory EIP-1193 provider. It signs with a single
// generated key and knows chain 1 until others are added.
type MemProvider struct {
	lk         sync.Mutex
	accounts   []common.Address
	authorized bool
	chainID    uint64
	known      map[uint64]bool
	failures   map[string]error
	calls      []string
	handlers   map[string]map[int]func(json.RawMessage)
	nextID     int

	// Gate, when set, blocks eth_requestAccounts until it is closed.
	Gate chan struct{}
}

func NewMemProvider(accounts ...common.Address) *MemProvider {
	if len(accounts) == 0 {
		accounts = []common.Address{RandomAddress()}
	}
	return &MemProvider{
		accounts: accounts,
		chainID:  1,
		known:    map[uint64]bool{1: true},
		failures: make(map[string]error),
		handlers: make(map[string]map[int]func(json.RawMessage)),
	}
}

func RandomAddress() common.Address {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Fail makes every later call of method return err, a nil err clears it.
func (m *MemProvider) Fail(method string, err error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// Reject makes method fail with EIP-1193 code.
// SetGate swaps Gate while requests may be in flight.
func (m *MemProvider) SetGate(gate chan struct{}) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.Gate = gate
}

func (m *MemProvider) Reject(method string, code int) {
	m.Fail(method, &injected.ProviderRPCError{Code: code, Message: fmt.Sprintf("%s rejected", method)})
}

func (m *MemProvider) Authorize(v bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.authorized = v
}

func (m *MemProvider) AddKnownChain(id uint64) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.known[id] = true
}

func (m *MemProvider) ChainID() uint64 {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.chainID
}

func (m *MemProvider) Calls() []string {
	m.lk.Lock()
	defer m.lk.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MemProvider) Listeners(event string) int {
	m.lk.Lock()
	defer m.lk.Unlock()
	return len(m.handlers[event])
}

func (m *MemProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	m.lk.Lock()
	m.calls = append(m.calls, method)
	failure := m.failures[method]
	gate := m.Gate
	m.lk.Unlock()

	if method == "eth_requestAccounts" && gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}

	m.lk.Lock()
	defer m.lk.Unlock()
	switch method {
	case "eth_requestAccounts":
		m.authorized = true
		return json.Marshal(m.accounts)
	case "eth_accounts":
		if !m.authorized {
			return json.Marshal([]common.Address{})
		}
		return json.Marshal(m.accounts)
	case "eth_chainId":
		return json.Marshal(hexutil.Uint64(m.chainID))
	case "wallet_switchEthereumChain":
		id, err := chainIDParam(params)
		if err != nil {
			return nil, err
		}
		if !m.known[id] {
			return nil, &injected.ProviderRPCError{Code: injected.CodeUnrecognizedChain, Message: "unrecognized chain"}
		}
		m.chainID = id
		return json.Marshal(nil)
	case "wallet_addEthereumChain":
		id, err := chainIDParam(params)
		if err != nil {
			return nil, err
		}
		m.known[id] = true
		m.chainID = id
		return json.Marshal(nil)
	case "wallet_revokePermissions":
		m.authorized = false
		return json.Marshal(nil)
	case "personal_sign":
		return json.Marshal(hexutil.Bytes(crypto.Keccak256([]byte(fmt.Sprint(params...)))))
	case "eth_sendTransaction":
		return json.Marshal(common.BytesToHash(crypto.Keccak256([]byte(fmt.Sprint(params...)))))
	}
	return nil, &injected.ProviderRPCError{Code: injected.CodeUnsupportedMethod, Message: method + " not supported"}
}

func chainIDParam(params []interface{}) (uint64, error) {
	if len(params) != 1 {
		return 0, fmt.Errorf("expect one parameter, got %d", len(params))
	}
	raw, err := json.Marshal(params[0])
	if err != nil {
		return 0, err
	}
	var p struct {
		ChainID hexutil.Uint64 `json:"chainId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, err
	}
	return uint64(p.ChainID), nil
}

func (m *MemProvider) On(event string, fn func(json.RawMessage)) func() {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.handlers[event] == nil {
		m.handlers[event] = make(map[int]func(json.RawMessage))
	}
	id := m.nextID
	m.nextID++
	m.handlers[event][id] = fn
	return func() {
		m.lk.Lock()
		defer m.lk.Unlock()
		delete(m.handlers[event], id)
	}
}

func (m *MemProvider) emit(event string, v interface{}) {
	payload, _ := json.Marshal(v)
	m.lk.Lock()
	fns := make([]func(json.RawMessage), 0, len(m.handlers[event]))
	for _, fn := range m.handlers[event] {
		fns = append(fns, fn)
	}
	m.lk.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}

// SetAccounts simulates the user switching accounts in the wallet UI.
func (m *MemProvider) SetAccounts(accounts ...common.Address) {
	m.lk.Lock()
	m.accounts = accounts
	m.lk.Unlock()
	if accounts == nil {
		accounts = []common.Address{}
	}
	m.emit(string(types.AccountsChanged), accounts)
}

// SetChain simulates the user switching network in the wallet UI.
func (m *MemProvider) SetChain(id uint64) {
	m.lk.Lock()
	m.chainID = id
	m.known[id] = true
	m.lk.Unlock()
	m.emit(string(types.ChainChanged), hexutil.Uint64(id))
}

// Drop simulates the provider losing its connection.
func (m *MemProvider) Drop() {
	m.emit(string(types.Disconnected), map[string]interface{}{"code": injected.CodeDisconnected, "message": "disconnected"})
}
