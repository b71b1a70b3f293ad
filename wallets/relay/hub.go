// Package relay is the remote wallet backend. Wallet apps open a session on
// the hub for a pairing topic and receive the dapp's requests as a stream,
// the relay adapter of that topic drives them like any other wallet.
package relay

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/ipfs-force-community/sophon-connector/metrics"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/utils"
)

var log = logging.Logger("relay")

var _ ServiceProvider = (*Hub)(nil)

type Hub struct {
	*types.BaseEventStream
	cfg      *types.RequestConfig
	sessions *sessionMgr
}

func NewHub(ctx context.Context, cfg *types.RequestConfig) *Hub {
	return &Hub{
		BaseEventStream: types.NewBaseEventStream(ctx, cfg),
		cfg:             cfg,
		sessions:        newSessionMgr(),
	}
}

func (h *Hub) ListenRelaySession(ctx context.Context, policy *SessionPolicy) (<-chan *types.RequestEvent, error) {
	if policy == nil || policy.Topic == "" {
		return nil, errors.New("relay session requires a pairing topic")
	}

	ip, _ := utils.RemoteIP(ctx)
	out := make(chan *types.RequestEvent, h.cfg.RequestQueueSize)
	sessionLog := log.With("topic", policy.Topic).With("ip", ip)
	ctx, _ = tag.New(ctx, tag.Upsert(metrics.TopicKey, policy.Topic), tag.Upsert(metrics.IPKey, ip))

	go func() {
		channel := types.NewChannelInfo(ctx, policy.Topic, ip, out)
		defer close(out)

		connectBytes, err := json.Marshal(ConnectedCompleted{ChannelID: channel.ChannelID})
		if err != nil {
			sessionLog.Errorf("marshal failed %v", err)
			return
		}

		// registered before InitConnect so a ready client is always routable
		session := &sessionInfo{ChannelInfo: channel, name: policy.Name}
		h.sessions.add(session)
		sessionLog.Infof("add new session %s", channel.ChannelID)
		stats.Record(ctx, metrics.RelayRegister.M(1))
		defer func() {
			stats.Record(ctx, metrics.RelayUnregister.M(1))
			h.sessions.remove(session)
		}()

		select {
		case out <- &types.RequestEvent{
			ID:         uuid.New(),
			Method:     InitConnect,
			CreateTime: time.Now(),
			Payload:    connectBytes,
		}: // not response
		case <-ctx.Done():
			return
		}

		<-ctx.Done()
	}()
	return out, nil
}

func (h *Hub) ResponseRelayEvent(ctx context.Context, resp *types.ResponseEvent) error {
	return h.ResponseEvent(ctx, resp)
}

// NotifyRelayEvent takes a backend-initiated change from a wallet app and
// hands it to the adapter bound to the session's topic.
func (h *Hub) NotifyRelayEvent(ctx context.Context, channelID uuid.UUID, ev *types.SessionEvent) error {
	if ev == nil {
		return errors.New("empty session event")
	}
	session, err := h.sessions.get(channelID)
	if err != nil {
		return err
	}

	switch ev.Type {
	case types.AccountsChanged:
		addrs, err := parseAddresses(ev.Accounts)
		if err != nil {
			return err
		}
		if addrs == nil {
			addrs = []common.Address{}
		}
		session.setState(addrs, 0)
	case types.ChainChanged:
		if ev.ChainID == 0 {
			return errors.New("chainChanged requires a chain id")
		}
		session.setState(nil, ev.ChainID)
	case types.Disconnected:
	default:
		return errors.Errorf("unknown session event %s", ev.Type)
	}

	log.Infow("relay session event", "channel", channelID.String(), "topic", session.Topic, "type", ev.Type)
	h.sessions.notify(session, ev)
	return nil
}

func (h *Hub) ListRelaySessions(ctx context.Context) ([]*SessionDetail, error) {
	details := h.sessions.list()
	sort.Slice(details, func(i, j int) bool {
		if details[i].CreateTime.Equal(details[j].CreateTime) {
			return details[i].ChannelID.String() < details[j].ChannelID.String()
		}
		return details[i].CreateTime.Before(details[j].CreateTime)
	})
	return details, nil
}

func (h *Hub) SessionCount() int {
	return h.sessions.count()
}

// HasSession reports whether topic has a live session.
func (h *Hub) HasSession(topic string) bool {
	return h.sessions.latest(topic) != nil
}

func (h *Hub) request(ctx context.Context, channel *types.ChannelInfo, method string, params, result interface{}) error {
	start := time.Now()
	err := h.SendRequest(ctx, channel, method, params, result)
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(metrics.TopicKey, channel.Topic)},
		metrics.RelayRequestSpent.M(metrics.SinceInMilliseconds(start)))
	return err
}

// push sends a notification the session does not answer. It never blocks.
func (h *Hub) push(channel *types.ChannelInfo, method string, params interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Debugf("push %s to closed session %s", method, channel.Topic)
		}
	}()
	payload, err := types.MarshalPayload(params)
	if err != nil {
		log.Warnf("marshal %s: %v", method, err)
		return
	}
	select {
	case channel.OutBound <- &types.RequestEvent{ID: uuid.New(), Method: method, Payload: payload, CreateTime: time.Now()}:
	default:
		log.Warnf("session %s queue full, drop %s", channel.Topic, method)
	}
}

// waitSession blocks until topic has a live session, i.e. until the user
// pairs a wallet app.
func (h *Hub) waitSession(ctx context.Context, topic string) (*sessionInfo, error) {
	opened := make(chan struct{}, 1)
	unwatch := h.sessions.watch(topic, func(ev watchEvent) {
		if ev.Opened {
			select {
			case opened <- struct{}{}:
			default:
			}
		}
	})
	defer unwatch()

	for {
		if s := h.sessions.latest(topic); s != nil {
			return s, nil
		}
		select {
		case <-opened:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func parseAddresses(accounts []string) ([]common.Address, error) {
	var addrs []common.Address
	for _, a := range accounts {
		if !common.IsHexAddress(a) {
			return nil, errors.Errorf("invalid account %q", a)
		}
		addrs = append(addrs, common.HexToAddress(a))
	}
	return addrs, nil
}
