package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/testhelper"
)

func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("SOPHON_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SOPHON_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := New(ctx, dsn, "connector_kv_test")
	require.NoError(t, err)
	defer s.Close() // nolint: errcheck
	_, err = s.db.ExecContext(ctx, "DELETE FROM connector_kv_test")
	require.NoError(t, err)

	testhelper.RunStorageSuite(t, s)
}
