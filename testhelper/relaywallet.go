package testhelper

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets/relay"
)

var _ relay.WalletProcessor = (*RelayWallet)(nil)

// RelayWallet is a wallet app holding one key, answering relay requests.
type RelayWallet struct {
	lk      sync.Mutex
	key     *ecdsa.PrivateKey
	chainID uint64
	chains  map[uint64]bool
	reject  bool
	fail    bool
	txs     int
}

func NewRelayWallet(chains ...uint64) *RelayWallet {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	w := &RelayWallet{key: key, chainID: 1, chains: map[uint64]bool{1: true}}
	for _, id := range chains {
		w.chains[id] = true
	}
	return w
}

func (w *RelayWallet) Address() common.Address {
	return crypto.PubkeyToAddress(w.key.PublicKey)
}

// SetReject makes the user decline every later request.
func (w *RelayWallet) SetReject(reject bool) {
	w.lk.Lock()
	defer w.lk.Unlock()
	w.reject = reject
}

// SetFail makes every later request fail with a non-taxonomy error.
func (w *RelayWallet) SetFail(fail bool) {
	w.lk.Lock()
	defer w.lk.Unlock()
	w.fail = fail
}

func (w *RelayWallet) check() error {
	w.lk.Lock()
	defer w.lk.Unlock()
	if w.reject {
		return errors.Wrap(types.ErrUserRejected, "user declined")
	}
	if w.fail {
		return fmt.Errorf("mock error")
	}
	return nil
}

func (w *RelayWallet) Accounts(ctx context.Context) ([]common.Address, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	return []common.Address{w.Address()}, nil
}

func (w *RelayWallet) ChainID(ctx context.Context) (uint64, error) {
	w.lk.Lock()
	defer w.lk.Unlock()
	return w.chainID, nil
}

func (w *RelayWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	if err := w.check(); err != nil {
		return err
	}
	w.lk.Lock()
	defer w.lk.Unlock()
	if !w.chains[chainID] {
		return errors.Wrapf(types.ErrUnsupportedChain, "chain %d", chainID)
	}
	w.chainID = chainID
	return nil
}

func (w *RelayWallet) SignMessage(ctx context.Context, signer common.Address, msg []byte) ([]byte, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	if signer != w.Address() {
		return nil, errors.Errorf("unknown signer %s", signer)
	}
	sig, err := crypto.Sign(accounts.TextHash(msg), w.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

func (w *RelayWallet) SendTransaction(ctx context.Context, tx *types.TransactionRequest) (common.Hash, error) {
	if err := w.check(); err != nil {
		return common.Hash{}, err
	}
	w.lk.Lock()
	defer w.lk.Unlock()
	w.txs++
	return crypto.Keccak256Hash(tx.From.Bytes(), []byte{byte(w.txs)}), nil
}
