package inapp

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

type LoginOptions struct {
	Strategy   string
	Identifier string
}

// Session is an authenticated enclave session. Token is opaque to everyone
// but the enclave.
type Session struct {
	Token     string
	Address   common.Address
	ExpiresAt time.Time
}

// Enclave holds the keys of embedded wallets. Keys never leave it, callers
// only get signatures.
type Enclave interface {
	Login(ctx context.Context, opts LoginOptions) (*Session, error)
	Resume(ctx context.Context, token string) (*Session, error)
	Logout(ctx context.Context, token string) error
	// Sign signs a 32 byte digest with the session's key.
	Sign(ctx context.Context, token string, digest []byte) ([]byte, error)
}

var _ Enclave = (*MemEnclave)(nil)

type memSession struct {
	identity  string
	expiresAt time.Time
}

// MemEnclave keeps secp256k1 keys in memory, one per login identity. It is
// the local enclave of the daemon and of tests. Keys are random unless a
// mnemonic is set, then every identity maps to a fixed BIP-44 child.
type MemEnclave struct {
	lk       sync.Mutex
	ttl      time.Duration
	seed     []byte
	keys     map[string]*ecdsa.PrivateKey
	sessions map[string]*memSession
	fail     bool
	now      func() time.Time
}

func NewMemEnclave(ttl time.Duration) *MemEnclave {
	return &MemEnclave{
		ttl:      ttl,
		keys:     make(map[string]*ecdsa.PrivateKey),
		sessions: make(map[string]*memSession),
		now:      time.Now,
	}
}

// NewHDEnclave derives the identity keys from mnemonic, so addresses survive
// a restart.
func NewHDEnclave(mnemonic string, ttl time.Duration) (*MemEnclave, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	m := NewMemEnclave(ttl)
	m.seed = bip39.NewSeed(mnemonic, "")
	return m, nil
}

// identityIndex is the non hardened address index of an identity.
func identityIndex(identity string) uint32 {
	h := crypto.Keccak256([]byte(identity))
	return binary.BigEndian.Uint32(h[:4]) &^ bip32.FirstHardenedChild
}

// deriveKey walks m/44'/60'/0'/0/index.
func deriveKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "master key")
	}
	for _, child := range []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + 60,
		bip32.FirstHardenedChild,
		0,
		index,
	} {
		if key, err = key.NewChildKey(child); err != nil {
			return nil, errors.Wrapf(err, "derive child %d", child)
		}
	}
	return crypto.ToECDSA(key.Key)
}

func (m *MemEnclave) newKey(identity string) (*ecdsa.PrivateKey, error) {
	if m.seed == nil {
		return crypto.GenerateKey()
	}
	return deriveKey(m.seed, identityIndex(identity))
}

// SetFail makes every later call fail until cleared.
func (m *MemEnclave) SetFail(fail bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.fail = fail
}

func identity(opts LoginOptions) string {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = "email"
	}
	return strategy + ":" + strings.ToLower(strings.TrimSpace(opts.Identifier))
}

func (m *MemEnclave) Login(ctx context.Context, opts LoginOptions) (*Session, error) {
	if strings.TrimSpace(opts.Identifier) == "" {
		return nil, errors.New("login identifier is required")
	}
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.fail {
		return nil, errors.New("enclave unreachable")
	}

	id := identity(opts)
	key, ok := m.keys[id]
	if !ok {
		var err error
		key, err = m.newKey(id)
		if err != nil {
			return nil, err
		}
		m.keys[id] = key
	}
	token := uuid.NewString()
	sess := &memSession{identity: id}
	if m.ttl > 0 {
		sess.expiresAt = m.now().Add(m.ttl)
	}
	m.sessions[token] = sess
	return &Session{Token: token, Address: crypto.PubkeyToAddress(key.PublicKey), ExpiresAt: sess.expiresAt}, nil
}

func (m *MemEnclave) lookupLocked(token string) (*memSession, *ecdsa.PrivateKey, error) {
	if m.fail {
		return nil, nil, errors.New("enclave unreachable")
	}
	sess, ok := m.sessions[token]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if !sess.expiresAt.IsZero() && m.now().After(sess.expiresAt) {
		delete(m.sessions, token)
		return nil, nil, ErrSessionExpired
	}
	return sess, m.keys[sess.identity], nil
}

func (m *MemEnclave) Resume(ctx context.Context, token string) (*Session, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	sess, key, err := m.lookupLocked(token)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Address: crypto.PubkeyToAddress(key.PublicKey), ExpiresAt: sess.expiresAt}, nil
}

func (m *MemEnclave) Logout(ctx context.Context, token string) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemEnclave) Sign(ctx context.Context, token string, digest []byte) ([]byte, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	_, key, err := m.lookupLocked(token)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(digest, key)
}
