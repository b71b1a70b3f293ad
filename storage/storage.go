// Package storage is the key-value persistence the connection manager uses
// to remember the last connection across restarts.
package storage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ipfs-force-community/sophon-connector/types"
)

// Storage is an async key-value store, the Go shape of getItem / setItem /
// removeItem. GetItem reports ok=false for a missing key.
type Storage interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

const DefaultKeyPrefix = "sophon."

// Keys builds the fixed key namespace under a prefix.
type Keys struct {
	Prefix string
}

func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return Keys{Prefix: prefix}
}

func (k Keys) ActiveWallet() string { return k.Prefix + "activeWalletId" }

func (k Keys) ConnectedWallets() string { return k.Prefix + "connectedWallets" }

func (k Keys) Session(id types.WalletID) string {
	return k.Prefix + "session." + string(id)
}

// IsSession reports whether key is a session key and returns its wallet id.
func (k Keys) IsSession(key string) (types.WalletID, bool) {
	prefix := k.Prefix + "session."
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return types.WalletID(strings.TrimPrefix(key, prefix)), true
}

// GetWalletIDs decodes the JSON array stored under key. A missing key is an
// empty list.
func GetWalletIDs(ctx context.Context, s Storage, key string) ([]types.WalletID, error) {
	raw, ok, err := s.GetItem(ctx, key)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var ids []types.WalletID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func SetWalletIDs(ctx context.Context, s Storage, key string, ids []types.WalletID) error {
	if len(ids) == 0 {
		return s.RemoveItem(ctx, key)
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.SetItem(ctx, key, string(data))
}
