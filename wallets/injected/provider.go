package injected

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is the EIP-1193 surface of an injected wallet.
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
	// On registers fn for a provider event ("accountsChanged",
	// "chainChanged", "disconnect") and returns its unsubscribe func.
	On(event string, fn func(payload json.RawMessage)) (unsubscribe func())
}

// ProviderRPCError is an EIP-1193 error object.
type ProviderRPCError struct {
	Code    int
	Message string
}

func (e *ProviderRPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func (e *ProviderRPCError) ErrorCode() int { return e.Code }

var _ Provider = (*HTTPProvider)(nil)

// HTTPProvider talks EIP-1193 to a local signer endpoint over JSON-RPC, the
// way desktop signers such as Frame or Clef expose themselves. It has no push
// channel, so On never fires.
type HTTPProvider struct {
	client *rpc.Client
}

func DialHTTPProvider(ctx context.Context, url string) (*HTTPProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return &HTTPProvider{client: client}, nil
}

func (p *HTTPProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	if err := p.client.CallContext(ctx, &result, method, params...); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *HTTPProvider) On(string, func(json.RawMessage)) func() {
	return func() {}
}

func (p *HTTPProvider) Close() {
	p.client.Close()
}
