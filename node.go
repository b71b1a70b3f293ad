package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/etherlabsio/healthcheck/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/multierr"

	"github.com/ipfs-force-community/sophon-connector/chains"
	"github.com/ipfs-force-community/sophon-connector/config"
	"github.com/ipfs-force-community/sophon-connector/connmgr"
	"github.com/ipfs-force-community/sophon-connector/events"
	"github.com/ipfs-force-community/sophon-connector/storage"
	"github.com/ipfs-force-community/sophon-connector/storage/mongo"
	"github.com/ipfs-force-community/sophon-connector/storage/postgres"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
	"github.com/ipfs-force-community/sophon-connector/wallets/inapp"
	"github.com/ipfs-force-community/sophon-connector/wallets/injected"
	"github.com/ipfs-force-community/sophon-connector/wallets/relay"
	"github.com/ipfs-force-community/sophon-connector/wallets/smart"
)

// node holds everything RunMain wires together.
type node struct {
	mgr     *connmgr.Manager
	hub     *relay.Hub
	storage storage.Storage
	sink    events.Sink
	closers []func(ctx context.Context) error
}

func (n *node) ConnectedCount() int { return n.mgr.ConnectedCount() }

func (n *node) RelaySessionCount() int {
	if n.hub == nil {
		return 0
	}
	return n.hub.SessionCount()
}

// healthChecks probes the storage backend, a missing key is fine.
func (n *node) healthChecks() []healthcheck.Option {
	return []healthcheck.Option{
		healthcheck.WithChecker("storage", healthcheck.CheckerFunc(func(ctx context.Context) error {
			_, _, err := n.storage.GetItem(ctx, "healthcheck")
			return err
		})),
	}
}

func (n *node) close(ctx context.Context) {
	var err error
	if n.mgr != nil {
		err = multierr.Append(err, n.mgr.Close(ctx))
	}
	if n.sink != nil {
		err = multierr.Append(err, n.sink.Close())
	}
	for i := len(n.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, n.closers[i](ctx))
	}
	if err != nil {
		log.Warnf("close node: %v", err)
	}
}

func buildNode(ctx context.Context, repo string, cfg *config.Config) (*node, error) {
	n := &node{}

	registry, err := chains.LoadRegistry(repoPath(repo, cfg.Chains.File))
	if err != nil {
		return nil, err
	}
	if _, err := registry.Get(cfg.Chains.DefaultChain); err != nil {
		return nil, fmt.Errorf("default chain: %w", err)
	}

	st, err := n.buildStorage(ctx, repo, cfg.Storage)
	if err != nil {
		n.close(ctx)
		return nil, err
	}
	n.storage = st

	n.sink, err = buildSink(cfg.Events)
	if err != nil {
		n.close(ctx)
		return nil, err
	}

	adapters, err := n.buildAdapters(ctx, cfg, registry)
	if err != nil {
		n.close(ctx)
		return nil, err
	}

	n.mgr = connmgr.New(connmgr.Options{
		Registry:     registry,
		Storage:      st,
		Sink:         n.sink,
		DefaultChain: cfg.Chains.DefaultChain,
		KeyPrefix:    cfg.Storage.KeyPrefix,
	})
	for _, a := range adapters {
		if err := n.mgr.Register(a); err != nil {
			n.close(ctx)
			return nil, err
		}
		log.Infof("register wallet %s, capabilities %s", a.ID(), a.Capabilities())
	}
	return n, nil
}

func repoPath(repo, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repo, path)
}

func (n *node) buildStorage(ctx context.Context, repo string, cfg *config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case config.StorageMemory:
		return storage.NewMemoryStorage(), nil
	case config.StorageFile, "":
		return storage.NewFileStorage(repoPath(repo, cfg.Path))
	case config.StorageMongo:
		st, err := mongo.New(ctx, cfg.URI, cfg.Database, cfg.Collection)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, st.Close)
		return st, nil
	case config.StoragePostgres:
		st, err := postgres.New(ctx, cfg.URI, cfg.Table)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, func(context.Context) error { return st.Close() })
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage type %s", cfg.Type)
	}
}

func buildSink(cfg *config.EventsConfig) (events.Sink, error) {
	var sinks events.MultiSink
	if cfg.Log {
		sinks = append(sinks, events.LogSink{})
	}
	if cfg.AMQPURI != "" {
		s, err := events.NewAMQPSink(cfg.AMQPURI, cfg.Exchange)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		return events.Nop(), nil
	}
	return sinks, nil
}

func (n *node) buildAdapters(ctx context.Context, cfg *config.Config, registry *chains.Registry) ([]wallets.Adapter, error) {
	var out []wallets.Adapter

	if cfg.Injected.Enabled && cfg.Injected.URL != "" {
		provider, err := injected.DialHTTPProvider(ctx, cfg.Injected.URL)
		if err != nil {
			return nil, fmt.Errorf("dial injected provider %s: %w", cfg.Injected.URL, err)
		}
		n.closers = append(n.closers, func(context.Context) error {
			provider.Close()
			return nil
		})
		out = append(out, injected.New(injected.Config{
			ID:             injected.DefaultID,
			ConnectTimeout: cfg.Injected.ConnectTimeout,
		}, provider, registry))
	} else if cfg.Injected.Enabled {
		log.Warn("injected wallet enabled without provider url, skip")
	}

	if cfg.InApp.Enabled {
		enclave := inapp.NewMemEnclave(cfg.InApp.SessionTTL)
		if cfg.InApp.Mnemonic != "" {
			var err error
			if enclave, err = inapp.NewHDEnclave(cfg.InApp.Mnemonic, cfg.InApp.SessionTTL); err != nil {
				return nil, err
			}
		}
		out = append(out, inapp.New(inapp.Config{
			ID:             inapp.DefaultID,
			DefaultChain:   cfg.Chains.DefaultChain,
			ConnectTimeout: cfg.InApp.ConnectTimeout,
		}, enclave, registry))
	}

	if cfg.Relay.Enabled {
		n.hub = relay.NewHub(ctx, cfg.Relay.RequestConfig())
		out = append(out, relay.New(relay.Config{
			ID:             relay.DefaultID,
			Topic:          cfg.Relay.Topic,
			ConnectTimeout: cfg.Relay.ConnectTimeout,
		}, n.hub))
	}

	if cfg.Smart.Enabled {
		personalID := types.WalletID(cfg.Smart.Personal)
		idx := -1
		for i, a := range out {
			if a.ID() == personalID {
				idx = i
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("smart account owner %s is not enabled", personalID)
		}
		personal := out[idx]
		// the smart adapter drives its owner, which is not connectable on its own
		out = append(out[:idx], out[idx+1:]...)
		out = append(out, smart.New(smart.Config{
			ID:              smart.DefaultID,
			Factory:         common.HexToAddress(cfg.Smart.Factory),
			InitCodeHash:    common.HexToHash(cfg.Smart.InitCodeHash),
			SponsoredChains: cfg.Smart.SponsoredChains,
		}, personal))
	}

	return out, nil
}
