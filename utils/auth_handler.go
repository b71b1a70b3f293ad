package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/filecoin-project/go-jsonrpc/auth"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/trace"
)

var log = logging.Logger("auth")

// AuthHandler checks the bearer token of every request and stores the granted
// permissions in the request context. Loopback callers without a token are
// granted everything.
type AuthHandler struct {
	Verify func(ctx context.Context, token string) ([]auth.Permission, error)
	Next   http.HandlerFunc
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "AuthHandler.ServeHTTP",
		func(so *trace.StartOptions) { so.Sampler = trace.AlwaysSample() })
	defer span.End()

	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.FormValue("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	if token == "" {
		if !isLoopback(r.RemoteAddr) {
			message := "JWT verification failed, empty token"
			span.SetStatus(trace.Status{Code: trace.StatusCodeUnauthenticated, Message: message})
			log.Warnf(message)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ctx = auth.WithPerm(ctx, ExpandPerm(PermAdmin))
		h.Next(w, r.WithContext(ctx))
		return
	}

	if !strings.HasPrefix(token, "Bearer ") {
		log.Warn("missing Bearer prefix in auth header")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	token = strings.TrimPrefix(token, "Bearer ")
	span.AddAttributes(trace.StringAttribute("X-Real-IP", r.RemoteAddr),
		trace.StringAttribute("preHost", r.Host))

	perms, err := h.Verify(ctx, token)
	if err != nil {
		message := fmt.Sprintf("JWT Verification failed (originating from %s): %s", r.RemoteAddr, err.Error())
		span.SetStatus(trace.Status{Code: trace.StatusCodeUnauthenticated, Message: message})
		log.Warnf(message)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	ctx = auth.WithPerm(ctx, perms)
	h.Next(w, r.WithContext(ctx))
}

func isLoopback(remote string) bool {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
