package utils

import (
	"context"
	"net"
	"net/http"
)

type remoteIPKey struct{}

func WithRemoteIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, remoteIPKey{}, ip)
}

func RemoteIP(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(remoteIPKey{}).(string)
	return ip, ok
}

// RemoteIPHandler stores the caller address in the request context so relay
// sessions can be attributed.
func RemoteIPHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.Header.Get("X-Real-Ip")
		if ip == "" {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(WithRemoteIP(r.Context(), ip)))
	})
}
