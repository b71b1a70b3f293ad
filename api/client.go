package api

import (
	"context"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/google/uuid"

	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets/relay"
)

// NewConnectorClient dials a running daemon. addr is the full rpc url, e.g.
// ws://127.0.0.1:45133/rpc/v0.
func NewConnectorClient(ctx context.Context, addr string, token string) (*ConnectorStruct, jsonrpc.ClientCloser, error) {
	var res ConnectorStruct
	header := http.Header{}
	if token != "" {
		header.Add("Authorization", "Bearer "+token)
	}
	closer, err := jsonrpc.NewMergeClient(ctx, addr, Namespace,
		[]interface{}{&res.IConnectorStruct.Internal, &res.IRelayStruct.Internal}, header)
	if err != nil {
		return nil, nil, err
	}
	return &res, closer, nil
}

// RelayProvider adapts the rpc client to relay.ServiceProvider, so a wallet
// app can run relay.Client against a remote daemon.
type RelayProvider struct {
	rpc IRelayStruct
}

var _ relay.ServiceProvider = (*RelayProvider)(nil)

func (p *RelayProvider) ListenRelaySession(ctx context.Context, policy *relay.SessionPolicy) (<-chan *types.RequestEvent, error) {
	ch, err := p.rpc.ListenRelaySession(ctx, policy)
	return ch, DecodeError(err)
}

func (p *RelayProvider) ResponseRelayEvent(ctx context.Context, resp *types.ResponseEvent) error {
	return DecodeError(p.rpc.ResponseRelayEvent(ctx, resp))
}

func (p *RelayProvider) NotifyRelayEvent(ctx context.Context, channelID uuid.UUID, ev *types.SessionEvent) error {
	return DecodeError(p.rpc.NotifyRelayEvent(ctx, channelID, ev))
}

// DialRelayHub connects a wallet app to the hub of a daemon.
func DialRelayHub(ctx context.Context, addr string, token string) (*RelayProvider, jsonrpc.ClientCloser, error) {
	var p RelayProvider
	header := http.Header{}
	if token != "" {
		header.Add("Authorization", "Bearer "+token)
	}
	closer, err := jsonrpc.NewMergeClient(ctx, addr, Namespace, []interface{}{&p.rpc.Internal}, header)
	if err != nil {
		return nil, nil, err
	}
	return &p, closer, nil
}
