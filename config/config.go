package config

import (
	"os"
	"time"

	"github.com/ipfs-force-community/metrics"
	"github.com/pelletier/go-toml"

	"github.com/ipfs-force-community/sophon-connector/types"
)

const (
	// Configuration file name
	ConfigFile = "config.toml"
)

type Config struct {
	API      *APIConfig
	Storage  *StorageConfig
	Chains   *ChainsConfig
	Injected *InjectedConfig
	InApp    *InAppConfig
	Relay    *RelayConfig
	Smart    *SmartConfig
	Events   *EventsConfig
	Metrics  *metrics.MetricsConfig
	Trace    *metrics.TraceConfig
}

type APIConfig struct {
	ListenAddress string
	// AllowedOrigins of browser dapps, empty allows any
	AllowedOrigins []string
	RatePerMinute  int
}

const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
)

type StorageConfig struct {
	// Type is one of memory, file, mongo, postgres
	Type string
	// Path of the file backend, relative to the repo
	Path       string
	URI        string
	Database   string
	Collection string
	Table      string
	KeyPrefix  string
}

type ChainsConfig struct {
	DefaultChain uint64
	// File holds extra [[chain]] records, empty for the built-in set only
	File string
}

type InjectedConfig struct {
	Enabled bool
	// URL of an EIP-1193 compatible json rpc endpoint
	URL            string
	ConnectTimeout time.Duration
}

type InAppConfig struct {
	Enabled bool
	// Mnemonic seeds the identity keys, empty for random keys per run
	Mnemonic       string
	SessionTTL     time.Duration
	ConnectTimeout time.Duration
}

type RelayConfig struct {
	Enabled          bool
	Topic            string
	RequestQueueSize int
	RequestTimeout   time.Duration
	ClearInterval    time.Duration
	ConnectTimeout   time.Duration
}

// RequestConfig is the stream setting of the relay hub.
func (r *RelayConfig) RequestConfig() *types.RequestConfig {
	return &types.RequestConfig{
		RequestQueueSize: r.RequestQueueSize,
		RequestTimeout:   r.RequestTimeout,
		ClearInterval:    r.ClearInterval,
	}
}

type SmartConfig struct {
	Enabled bool
	// Personal is the id of the wallet that owns the smart account
	Personal        string
	Factory         string
	InitCodeHash    string
	SponsoredChains []uint64
}

type EventsConfig struct {
	Log      bool
	AMQPURI  string
	Exchange string
}

func DefaultConfig() *Config {
	reqCfg := types.DefaultConfig()
	cfg := &Config{
		API: &APIConfig{ListenAddress: "/ip4/127.0.0.1/tcp/45133", RatePerMinute: 600},
		Storage: &StorageConfig{
			Type:       StorageFile,
			Path:       "connections.json",
			Database:   "sophon-connector",
			Collection: "connector_kv",
			Table:      "connector_kv",
			KeyPrefix:  "sophon.",
		},
		Chains:   &ChainsConfig{DefaultChain: 1},
		Injected: &InjectedConfig{Enabled: true, URL: "", ConnectTimeout: 2 * time.Minute},
		InApp:    &InAppConfig{Enabled: true, SessionTTL: 24 * time.Hour, ConnectTimeout: time.Minute},
		Relay: &RelayConfig{
			Enabled:          true,
			Topic:            "relay",
			RequestQueueSize: reqCfg.RequestQueueSize,
			RequestTimeout:   reqCfg.RequestTimeout,
			ClearInterval:    reqCfg.ClearInterval,
			ConnectTimeout:   5 * time.Minute,
		},
		Smart: &SmartConfig{
			Enabled:         false,
			Personal:        "inapp",
			SponsoredChains: []uint64{1},
		},
		Events:  &EventsConfig{Log: true, Exchange: "sophon.connector"},
		Metrics: metrics.DefaultMetricsConfig(),
		Trace:   metrics.DefaultTraceConfig(),
	}
	namespace := "connector"
	cfg.Metrics.Exporter.Prometheus.Namespace = namespace
	cfg.Metrics.Exporter.Graphite.Namespace = namespace
	cfg.Metrics.Exporter.Prometheus.EndPoint = "/ip4/0.0.0.0/tcp/4570"
	cfg.Metrics.Exporter.Graphite.Port = 4570
	cfg.Trace.ServerName = "sophon-connector"
	cfg.Trace.JaegerEndpoint = ""

	return cfg
}

func ReadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	err = toml.Unmarshal(data, cfg)

	return cfg, err
}

func WriteConfig(filePath string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(filePath, data, 0600)
}
