package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ipfs-force-community/sophon-connector/types"
)

// Client is the wallet app side of a relay session. It keeps one session
// open, answers the hub's requests with its WalletProcessor and reconnects
// when the session drops.
type Client struct {
	processor WalletProcessor
	provider  ServiceProvider
	policy    *SessionPolicy
	log       *zap.SugaredLogger

	lk      sync.Mutex
	channel uuid.UUID
	readyCh chan struct{}
}

func NewClient(processor WalletProcessor, provider ServiceProvider, policy *SessionPolicy, log *zap.SugaredLogger) *Client {
	return &Client{
		processor: processor,
		provider:  provider,
		policy:    policy,
		log:       log,
		readyCh:   make(chan struct{}, 1),
	}
}

func (c *Client) Channel() uuid.UUID {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.channel
}

func (c *Client) ListenRelayRequest(ctx context.Context) {
	for {
		if err := c.listenRelayRequestOnce(ctx); err != nil {
			c.log.Errorf("listen relay event errored: %s", err)
		} else {
			c.log.Warn("listenRelayRequestOnce quit, try again")
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			c.log.Warnf("not restarting listenRelayRequestOnce: context error: %s", ctx.Err())
			return
		}
		c.log.Info("restarting listenRelayRequestOnce")
		// try clear ready channel
		select {
		case <-c.readyCh:
		default:
		}
	}
}

func (c *Client) WaitReady(ctx context.Context) {
	select {
	case <-c.readyCh:
	case <-ctx.Done():
	}
}

func (c *Client) listenRelayRequestOnce(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.log.Infow("open relay session", "topic", c.policy.Topic, "name", c.policy.Name)
	eventCh, err := c.provider.ListenRelaySession(ctx, c.policy)
	if err != nil {
		// Retry is handled by caller
		return fmt.Errorf("listenRelayRequestOnce ListenRelaySession call failed: %w", err)
	}

	for event := range eventCh {
		switch event.Method {
		case InitConnect:
			req := ConnectedCompleted{}
			if err := json.Unmarshal(event.Payload, &req); err != nil {
				c.log.Errorf("init connect error %s", err)
				continue
			}
			c.lk.Lock()
			c.channel = req.ChannelID
			c.lk.Unlock()
			c.log.Infof("connect to hub success %v", req.ChannelID)
			select {
			case c.readyCh <- struct{}{}:
			default:
			}
			// do not response
		case "wallet_disconnect":
			c.log.Infof("dapp closed session %s", c.Channel())
		default:
			go c.handle(ctx, event)
		}
	}

	return nil
}

func (c *Client) handle(ctx context.Context, event *types.RequestEvent) {
	var params []json.RawMessage
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &params); err != nil {
			c.log.Errorf("unmarshal %s params error %s", event.Method, err)
			c.error(ctx, event.ID, err)
			return
		}
	}

	result, err := c.dispatch(ctx, event.Method, params)
	if err != nil {
		c.log.Errorf("%s error %s", event.Method, err)
		c.error(ctx, event.ID, err)
		return
	}
	c.value(ctx, event.ID, result)
}

func (c *Client) dispatch(ctx context.Context, method string, params []json.RawMessage) (interface{}, error) {
	switch method {
	case "eth_requestAccounts", "eth_accounts":
		return c.processor.Accounts(ctx)
	case "eth_chainId":
		id, err := c.processor.ChainID(ctx)
		return hexutil.Uint64(id), err
	case "wallet_switchEthereumChain":
		var p struct {
			ChainID hexutil.Uint64 `json:"chainId"`
		}
		if err := unmarshalParam(params, 0, &p); err != nil {
			return nil, err
		}
		return nil, c.processor.SwitchChain(ctx, uint64(p.ChainID))
	case "personal_sign":
		var msg hexutil.Bytes
		var signer common.Address
		if err := unmarshalParam(params, 0, &msg); err != nil {
			return nil, err
		}
		if err := unmarshalParam(params, 1, &signer); err != nil {
			return nil, err
		}
		sig, err := c.processor.SignMessage(ctx, signer, msg)
		return hexutil.Bytes(sig), err
	case "eth_sendTransaction":
		var tx types.TransactionRequest
		if err := unmarshalParam(params, 0, &tx); err != nil {
			return nil, err
		}
		return c.processor.SendTransaction(ctx, &tx)
	}
	return nil, fmt.Errorf("unexpect relay event type %s", method)
}

func unmarshalParam(params []json.RawMessage, idx int, v interface{}) error {
	if idx >= len(params) {
		return fmt.Errorf("missing parameter %d", idx)
	}
	return json.Unmarshal(params[idx], v)
}

// Notify pushes a wallet-side change, e.g. the user picked another account.
func (c *Client) Notify(ctx context.Context, ev *types.SessionEvent) error {
	return c.provider.NotifyRelayEvent(ctx, c.Channel(), ev)
}

func (c *Client) value(ctx context.Context, id uuid.UUID, val interface{}) {
	respBytes, err := json.Marshal(val)
	if err != nil {
		c.log.Errorf("marshal response error %s", err)
		c.error(ctx, id, err)
		return
	}
	err = c.provider.ResponseRelayEvent(ctx, &types.ResponseEvent{
		ID:      id,
		Payload: respBytes,
		Error:   "",
	})
	if err != nil {
		c.log.Errorf("response error %v", err)
	}
}

func (c *Client) error(ctx context.Context, id uuid.UUID, err error) {
	code := types.Classify(err)
	if code == types.CodeUnknown {
		code = types.CodeNone
	}
	err = c.provider.ResponseRelayEvent(ctx, &types.ResponseEvent{
		ID:      id,
		Payload: nil,
		Error:   err.Error(),
		Code:    code,
	})
	if err != nil {
		c.log.Errorf("response error %v", err)
	}
}
