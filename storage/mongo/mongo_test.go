package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/testhelper"
)

func TestMongoStorage(t *testing.T) {
	uri := os.Getenv("SOPHON_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SOPHON_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := New(ctx, uri, "sophon_test", "connector_kv_test")
	require.NoError(t, err)
	defer s.Close(ctx) // nolint: errcheck
	_, _ = s.col.DeleteMany(ctx, map[string]interface{}{})

	testhelper.RunStorageSuite(t, s)
}
