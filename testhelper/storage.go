package testhelper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/storage"
	"github.com/ipfs-force-community/sophon-connector/types"
)

// RunStorageSuite checks the getItem / setItem / removeItem contract against
// any backend.
func RunStorageSuite(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	keys := storage.NewKeys("suite.")

	_, ok, err := s.GetItem(ctx, keys.ActiveWallet())
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetItem(ctx, keys.ActiveWallet(), "injected"))
	v, ok, err := s.GetItem(ctx, keys.ActiveWallet())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "injected", v)

	require.NoError(t, s.SetItem(ctx, keys.ActiveWallet(), "inapp"))
	v, _, err = s.GetItem(ctx, keys.ActiveWallet())
	require.NoError(t, err)
	require.Equal(t, "inapp", v)

	ids := []types.WalletID{"inapp", "injected"}
	require.NoError(t, storage.SetWalletIDs(ctx, s, keys.ConnectedWallets(), ids))
	got, err := storage.GetWalletIDs(ctx, s, keys.ConnectedWallets())
	require.NoError(t, err)
	require.Equal(t, ids, got)

	require.NoError(t, storage.SetWalletIDs(ctx, s, keys.ConnectedWallets(), nil))
	_, ok, err = s.GetItem(ctx, keys.ConnectedWallets())
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.RemoveItem(ctx, keys.ActiveWallet()))
	require.NoError(t, s.RemoveItem(ctx, keys.ActiveWallet()))
	_, ok, err = s.GetItem(ctx, keys.ActiveWallet())
	require.NoError(t, err)
	require.False(t, ok)
}
