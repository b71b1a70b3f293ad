package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()

	cfgPath := filepath.Join(t.TempDir(), ConfigFile)
	assert.NoError(t, WriteConfig(cfgPath, cfg))

	res, err := ReadConfig(cfgPath)
	assert.NoError(t, err)
	assert.Equal(t, cfg, res)
}

func TestReadPartialConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), ConfigFile)
	data := `
[Storage]
  Type = "postgres"
  URI = "postgres://localhost/connector"

[Relay]
  RequestTimeout = "30s"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(data), 0644))

	cfg, err := ReadConfig(cfgPath)
	require.NoError(t, err)
	require.Equal(t, StoragePostgres, cfg.Storage.Type)
	require.Equal(t, "postgres://localhost/connector", cfg.Storage.URI)
	require.Equal(t, 30*time.Second, cfg.Relay.RequestTimeout)
	require.Equal(t, cfg.Relay.RequestTimeout, cfg.Relay.RequestConfig().RequestTimeout)
}
