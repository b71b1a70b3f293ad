package types

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/modern-go/reflect2"
	"github.com/pkg/errors"
)

var log = logging.Logger("event_stream")

var ErrCloseChannel = fmt.Errorf("send on closed channel")

// BaseEventStream correlates requests pushed to remote sessions with the
// responses they send back.
type BaseEventStream struct {
	reqLk     sync.Mutex
	idRequest map[uuid.UUID]*RequestEvent
	cfg       *RequestConfig
}

func NewBaseEventStream(ctx context.Context, cfg *RequestConfig) *BaseEventStream {
	baseEventStream := &BaseEventStream{
		idRequest: make(map[uuid.UUID]*RequestEvent),
		cfg:       cfg,
	}
	go baseEventStream.cleanRequests(ctx)
	return baseEventStream
}

// SendRequest pushes method to channel and waits for the reply. The reply
// payload is decoded into result unless result is nil. Remote errors come
// back as taxonomy errors.
func (e *BaseEventStream) SendRequest(ctx context.Context, channel *ChannelInfo, method string, params interface{}, result interface{}) error {
	if channel == nil {
		return fmt.Errorf("send request must have channel")
	}
	payload, err := MarshalPayload(params)
	if err != nil {
		return err
	}

	resp, err := e.sendOnce(ctx, channel, method, payload)
	if err != nil {
		return err
	}
	if len(resp.Error) > 0 {
		return ErrorFromCode(resp.Code, resp.Error)
	}
	if !reflect2.IsNil(result) && len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, result); err != nil {
			return errors.Wrapf(ErrUnavailable, "malformed %s response: %v", method, err)
		}
	}
	return nil
}

func (e *BaseEventStream) sendOnce(ctx context.Context, channel *ChannelInfo, method string, payload []byte) (response *ResponseEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(ErrUnavailable, ErrCloseChannel.Error())
		}
	}()

	id := uuid.New()
	resultCh := make(chan *ResponseEvent, 1)
	request := &RequestEvent{
		ID:         id,
		Method:     method,
		Payload:    payload,
		CreateTime: time.Now(),
		Result:     resultCh,
	}
	e.reqLk.Lock()
	e.idRequest[id] = request
	e.reqLk.Unlock()
	defer e.forget(id)

	select {
	case channel.OutBound <- request: // may panic if the session just closed, recovered above
		log.Debugf("send request %s to %s", method, channel.Topic)
	case <-channel.Done():
		return nil, errors.Wrapf(ErrUnavailable, "session %s closed", channel.Topic)
	case <-ctx.Done():
		return nil, contextError(ctx.Err(), "send request")
	}

	select {
	case <-ctx.Done():
		return nil, contextError(ctx.Err(), "wait response")
	case <-channel.Done():
		return nil, errors.Wrapf(ErrUnavailable, "session %s closed while waiting for %s", channel.Topic, method)
	case respEvent := <-resultCh:
		return respEvent, nil
	}
}

func (e *BaseEventStream) forget(id uuid.UUID) {
	e.reqLk.Lock()
	delete(e.idRequest, id)
	e.reqLk.Unlock()
}

func (e *BaseEventStream) cleanRequests(ctx context.Context) {
	tm := time.NewTicker(e.cfg.ClearInterval)
	defer tm.Stop()
	for {
		select {
		case <-tm.C:
			e.reqLk.Lock()
			for id, request := range e.idRequest {
				if time.Since(request.CreateTime) > e.cfg.RequestTimeout {
					delete(e.idRequest, id)
					// the session may answer at the same moment, never block here
					select {
					case request.Result <- &ResponseEvent{
						ID:    id,
						Error: fmt.Sprintf("request %s created at %s exceeded wait time", request.Method, request.CreateTime),
						Code:  CodeTimeout,
					}:
					default:
					}
				}
			}
			e.reqLk.Unlock()
		case <-ctx.Done():
			log.Warnf("return clean request")
			return
		}
	}
}

// ResponseEvent delivers a remote reply to the waiting request.
func (e *BaseEventStream) ResponseEvent(ctx context.Context, resp *ResponseEvent) error {
	e.reqLk.Lock()
	event, ok := e.idRequest[resp.ID]
	if ok {
		delete(e.idRequest, resp.ID)
	}
	e.reqLk.Unlock()
	if !ok {
		return fmt.Errorf("request id %s not exit", resp.ID.String())
	}
	event.Result <- resp
	return nil
}

// Pending reports the number of requests still waiting for a reply.
func (e *BaseEventStream) Pending() int {
	e.reqLk.Lock()
	defer e.reqLk.Unlock()
	return len(e.idRequest)
}

func contextError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(ErrTimeout, "%s: %v", op, err)
	}
	return fmt.Errorf("%s cancel by context %w", op, err)
}
