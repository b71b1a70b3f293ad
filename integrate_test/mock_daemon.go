package integrate

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/etherlabsio/healthcheck/v2"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/api"
	"github.com/ipfs-force-community/sophon-connector/chains"
	"github.com/ipfs-force-community/sophon-connector/connmgr"
	"github.com/ipfs-force-community/sophon-connector/events"
	"github.com/ipfs-force-community/sophon-connector/storage"
	"github.com/ipfs-force-community/sophon-connector/testhelper"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/utils"
	"github.com/ipfs-force-community/sophon-connector/version"
	"github.com/ipfs-force-community/sophon-connector/wallets/injected"
	"github.com/ipfs-force-community/sophon-connector/wallets/relay"
)

var log = logging.Logger("mock main")

type daemon struct {
	url      string
	httpURL  string
	token    string
	mgr      *connmgr.Manager
	hub      *relay.Hub
	provider *testhelper.MemProvider
	storage  *storage.MemoryStorage
	sink     *events.MemorySink
}

// setupDaemon serves an injected wallet over an in-memory provider and a relay
// wallet over the hub.
func setupDaemon(ctx context.Context, t *testing.T) *daemon {
	d := &daemon{
		provider: testhelper.NewMemProvider(),
		storage:  storage.NewMemoryStorage(),
		sink:     &events.MemorySink{},
	}
	registry := chains.NewRegistry()
	d.mgr = connmgr.New(connmgr.Options{Registry: registry, Storage: d.storage, Sink: d.sink, DefaultChain: 1})
	d.hub = relay.NewHub(ctx, &types.RequestConfig{
		RequestQueueSize: 30,
		RequestTimeout:   10 * time.Second,
		ClearInterval:    time.Second,
	})
	require.NoError(t, d.mgr.Register(injected.New(injected.DefaultConfig(), d.provider, registry)))
	require.NoError(t, d.mgr.Register(relay.New(relay.Config{ConnectTimeout: 10 * time.Second}, d.hub)))

	log.Infof("sophon-connector current version %s", version.UserVersion)

	localJwt, err := utils.NewLocalJwtClient(t.TempDir())
	require.NoError(t, err)

	storageCheck := healthcheck.WithChecker("storage", healthcheck.CheckerFunc(func(ctx context.Context) error {
		_, _, err := d.storage.GetItem(ctx, "healthcheck")
		return err
	}))
	srv := httptest.NewServer(api.NewRPCHandler(api.NewConnectorAPIImpl(d.mgr, d.hub), localJwt, api.ServerOptions{
		HealthChecks: []healthcheck.Option{storageCheck},
	}))
	t.Cleanup(srv.Close)

	d.httpURL = srv.URL

	d.url = "ws://" + strings.TrimPrefix(srv.URL, "http://") + api.RPCPath
	d.token = string(localJwt.Token)
	return d
}

func (d *daemon) client(ctx context.Context, t *testing.T) *api.ConnectorStruct {
	full, closer, err := api.NewConnectorClient(ctx, d.url, d.token)
	require.NoError(t, err)
	t.Cleanup(closer)
	return full
}
