package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/etherlabsio/healthcheck/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/connmgr"
	"github.com/ipfs-force-community/sophon-connector/utils"
)

func newTestServer(t *testing.T, opts ServerOptions) *httptest.Server {
	localJwt, err := utils.NewLocalJwtClient(t.TempDir())
	require.NoError(t, err)
	srv := httptest.NewServer(NewRPCHandler(NewConnectorAPIImpl(connmgr.New(connmgr.Options{}), nil), localJwt, opts))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) int {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint
	return resp.StatusCode
}

func TestHealthCheck(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv := newTestServer(t, ServerOptions{})
		require.Equal(t, http.StatusOK, get(t, srv.URL+HealthPath))
	})

	t.Run("failed check", func(t *testing.T) {
		srv := newTestServer(t, ServerOptions{HealthChecks: []healthcheck.Option{
			healthcheck.WithChecker("storage", healthcheck.CheckerFunc(func(ctx context.Context) error {
				return errors.New("down")
			})),
		}})
		require.Equal(t, http.StatusServiceUnavailable, get(t, srv.URL+HealthPath))
	})
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, ServerOptions{RatePerMinute: 1})
	require.Equal(t, http.StatusOK, get(t, srv.URL+HealthPath))
	require.Equal(t, http.StatusTooManyRequests, get(t, srv.URL+HealthPath))
}

func TestCors(t *testing.T) {
	preflight := func(t *testing.T, srv *httptest.Server, origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, srv.URL+RPCPath, nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("any origin", func(t *testing.T) {
		srv := newTestServer(t, ServerOptions{})
		resp := preflight(t, srv, "https://dapp.example")
		require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origins", func(t *testing.T) {
		srv := newTestServer(t, ServerOptions{AllowedOrigins: []string{"https://dapp.example"}})
		resp := preflight(t, srv, "https://dapp.example")
		require.Equal(t, "https://dapp.example", resp.Header.Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

		resp = preflight(t, srv, "https://evil.example")
		require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}
