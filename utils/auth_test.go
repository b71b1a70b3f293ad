package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/filecoin-project/go-jsonrpc/auth"

	"github.com/stretchr/testify/require"
)

func TestLocalJwtCreateAndVerify(t *testing.T) {
	ctx := context.Background()
	jwt, err := NewLocalJwtClient(t.TempDir())
	require.NoError(t, err)
	perm, err := jwt.Verify(ctx, string(jwt.Token))
	require.NoError(t, err)
	require.Equal(t, []auth.Permission{"admin", "sign", "read"}, perm)

	signToken, err := jwt.NewToken("app", PermSign)
	require.NoError(t, err)
	perm, err = jwt.Verify(ctx, string(signToken))
	require.NoError(t, err)
	require.Equal(t, []auth.Permission{"sign", "read"}, perm)

	other, err := NewLocalJwtClient(t.TempDir())
	require.NoError(t, err)
	_, err = other.Verify(ctx, string(jwt.Token))
	require.Error(t, err)
}

func TestSaveToken(t *testing.T) {
	repo := t.TempDir()
	jwt, err := NewLocalJwtClient(repo)
	require.NoError(t, err)
	require.NoError(t, jwt.SaveToken())

	token, err := ReadToken(repo)
	require.NoError(t, err)
	require.Equal(t, string(jwt.Token), token)
}

func TestAuthHandler(t *testing.T) {
	jwt, err := NewLocalJwtClient(t.TempDir())
	require.NoError(t, err)
	readToken, err := jwt.NewToken("reader", PermRead)
	require.NoError(t, err)

	var got []auth.Permission
	h := &AuthHandler{
		Verify: jwt.Verify,
		Next: func(w http.ResponseWriter, r *http.Request) {
			got = nil
			for _, p := range AllPermissions {
				if auth.HasPerm(r.Context(), nil, p) {
					got = append(got, p)
				}
			}
			if ip, ok := RemoteIP(r.Context()); ok {
				w.Header().Set("X-Seen-Ip", ip)
			}
		},
	}
	handler := RemoteIPHandler(h)

	serve := func(remote, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/rpc/v0", nil)
		req.RemoteAddr = remote
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := serve("127.0.0.1:5555", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, AllPermissions, got)
	require.Equal(t, "127.0.0.1", rec.Header().Get("X-Seen-Ip"))

	rec = serve("10.0.0.2:5555", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve("10.0.0.2:5555", string(readToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []auth.Permission{PermRead}, got)

	rec = serve("10.0.0.2:5555", "garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
