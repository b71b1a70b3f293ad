package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/filecoin-project/go-jsonrpc/auth"
	jwt3 "github.com/gbrlsnchs/jwt/v3"
)

const TokenFile = "token"

const (
	PermRead  auth.Permission = "read"
	PermSign  auth.Permission = "sign"
	PermAdmin auth.Permission = "admin"
)

// AllPermissions is ordered from the highest level down.
var AllPermissions = []auth.Permission{PermAdmin, PermSign, PermRead}

// JWTPayload is the claim set of connector tokens.
type JWTPayload struct {
	Perm auth.Permission `json:"perm"`
	Name string          `json:"name"`
}

// ExpandPerm returns perm and every level below it.
func ExpandPerm(perm auth.Permission) []auth.Permission {
	for i, p := range AllPermissions {
		if p == perm {
			out := make([]auth.Permission, len(AllPermissions)-i)
			copy(out, AllPermissions[i:])
			return out
		}
	}
	return []auth.Permission{PermRead}
}

// LocalJwtClient signs and verifies tokens with a secret generated at start,
// the admin token is saved in the repo for local commands.
type LocalJwtClient struct {
	repo   string
	Seckey []byte
	Token  []byte
}

func NewLocalJwtClient(repo string) (*LocalJwtClient, error) {
	var err error
	var seckey []byte
	if seckey, err = io.ReadAll(io.LimitReader(rand.Reader, 32)); err != nil {
		return nil, err
	}
	l := &LocalJwtClient{repo: repo, Seckey: seckey}
	if l.Token, err = l.NewToken("ConnectorLocalToken", PermAdmin); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LocalJwtClient) NewToken(name string, perm auth.Permission) ([]byte, error) {
	return jwt3.Sign(JWTPayload{Perm: perm, Name: name}, jwt3.NewHS256(l.Seckey))
}

func (l *LocalJwtClient) Verify(ctx context.Context, token string) ([]auth.Permission, error) {
	var payload JWTPayload
	if _, err := jwt3.Verify([]byte(token), jwt3.NewHS256(l.Seckey), &payload); err != nil {
		return nil, fmt.Errorf("JWT Verification failed: %v", err)
	}
	return ExpandPerm(payload.Perm), nil
}

func (l *LocalJwtClient) SaveToken() error {
	return os.WriteFile(path.Join(l.repo, TokenFile), l.Token, 0600)
}

// ReadToken loads the token saved by a running daemon in repo.
func ReadToken(repo string) (string, error) {
	data, err := os.ReadFile(path.Join(repo, TokenFile))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
