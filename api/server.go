package api

import (
	"net/http"
	"time"

	"github.com/etherlabsio/healthcheck/v2"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ipfs-force-community/sophon-connector/utils"
)

// RPCPath is where the json rpc server is mounted.
const RPCPath = "/rpc/v0"

// HealthPath answers without a token.
const HealthPath = "/healthcheck"

type ServerOptions struct {
	// AllowedOrigins of browser dapps, empty allows any origin
	AllowedOrigins []string
	// RatePerMinute limits requests per remote ip, 0 disables it
	RatePerMinute int
	HealthChecks  []healthcheck.Option
}

// NewRPCHandler mounts impl behind the permission proxy and the auth handler.
func NewRPCHandler(impl *ConnectorAPIImpl, verify *utils.LocalJwtClient, opts ServerOptions) http.Handler {
	var full ConnectorStruct
	ProxyConnector(impl, &full)

	rpcServer := jsonrpc.NewServer()
	rpcServer.Register(Namespace, &full)

	router := mux.NewRouter()
	router.Handle(RPCPath, rpcServer)
	router.PathPrefix("/").Handler(http.DefaultServeMux)

	authHandler := &utils.AuthHandler{Verify: verify.Verify, Next: router.ServeHTTP}

	root := mux.NewRouter()
	checks := append([]healthcheck.Option{healthcheck.WithTimeout(5 * time.Second)}, opts.HealthChecks...)
	root.Handle(HealthPath, healthcheck.Handler(checks...))
	root.PathPrefix("/").Handler(utils.RemoteIPHandler(authHandler))
	if opts.RatePerMinute > 0 {
		root.Use(httprate.LimitByIP(opts.RatePerMinute, time.Minute))
	}

	return newCors(opts.AllowedOrigins).Handler(root)
}

func newCors(allowedOrigins []string) *cors.Cors {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	// credentials can't go with a wildcard origin
	allowCredentials := !(len(allowedOrigins) == 1 && allowedOrigins[0] == "*")

	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: allowCredentials,
		MaxAge:           7200,
	})
}
