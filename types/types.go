package types

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RequestEvent is pushed to a remote wallet session. Result is local only and
// receives the matching ResponseEvent.
type RequestEvent struct {
	ID         uuid.UUID
	Method     string
	Payload    []byte
	CreateTime time.Time
	Result     chan *ResponseEvent `json:"-"`
}

// ResponseEvent is the remote session's answer for RequestEvent.ID. Code
// carries the taxonomy class when Error is set.
type ResponseEvent struct {
	ID      uuid.UUID
	Payload []byte
	Error   string
	Code    ErrorCode
}

// SessionEvent is a backend-initiated notification sent by a remote wallet
// session (accountsChanged, chainChanged, disconnect).
type SessionEvent struct {
	Type     AdapterEventType
	Accounts []string
	ChainID  uint64
}

// ChannelInfo is one live remote wallet session.
type ChannelInfo struct {
	ChannelID  uuid.UUID
	Topic      string
	IP         string
	OutBound   chan *RequestEvent
	CreateTime time.Time

	ctx context.Context
}

func NewChannelInfo(ctx context.Context, topic, ip string, sendEvents chan *RequestEvent) *ChannelInfo {
	return &ChannelInfo{
		ChannelID:  uuid.New(),
		Topic:      topic,
		IP:         ip,
		OutBound:   sendEvents,
		CreateTime: time.Now(),
		ctx:        ctx,
	}
}

// Done is closed when the session's connection goes away.
func (c *ChannelInfo) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *ChannelInfo) Closed() bool {
	return c.ctx.Err() != nil
}

func MarshalPayload(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
