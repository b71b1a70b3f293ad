// Package events publishes connection lifecycle events outside the process.
package events

import (
	"context"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"

	"github.com/ipfs-force-community/sophon-connector/types"
)

var log = logging.Logger("events")

type Kind string

const (
	Connected      Kind = "connected"
	ConnectFailed  Kind = "connect_failed"
	Disconnected   Kind = "disconnected"
	ActiveChanged  Kind = "active_changed"
	ChainChanged   Kind = "chain_changed"
	AccountChanged Kind = "account_changed"
	Restored       Kind = "restored"
	RestoreFailed  Kind = "restore_failed"
)

type Event struct {
	Kind    Kind            `json:"kind"`
	Wallet  types.WalletID  `json:"wallet,omitempty"`
	Account string          `json:"account,omitempty"`
	ChainID uint64          `json:"chainId,omitempty"`
	Code    types.ErrorCode `json:"code,omitempty"`
	Time    time.Time       `json:"time"`
}

// Sink receives lifecycle events. Publish is called outside of any manager
// lock and may block.
type Sink interface {
	Publish(ctx context.Context, ev *Event) error
	Close() error
}

type nopSink struct{}

func (nopSink) Publish(context.Context, *Event) error { return nil }
func (nopSink) Close() error                          { return nil }

func Nop() Sink { return nopSink{} }

// LogSink writes every event to the events logger.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, ev *Event) error {
	log.Infow("lifecycle event", "kind", ev.Kind, "wallet", ev.Wallet, "account", ev.Account, "chain", ev.ChainID, "code", ev.Code)
	return nil
}

func (LogSink) Close() error { return nil }

// MultiSink fans an event out to every sink, all of them are tried.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, ev *Event) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Publish(ctx, ev))
	}
	return err
}

func (m MultiSink) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// MemorySink keeps events in order, for tests and the state command.
type MemorySink struct {
	lk     sync.Mutex
	events []*Event
}

func (m *MemorySink) Publish(ctx context.Context, ev *Event) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	cp := *ev
	m.events = append(m.events, &cp)
	return nil
}

func (m *MemorySink) Close() error { return nil }

func (m *MemorySink) Events() []*Event {
	m.lk.Lock()
	defer m.lk.Unlock()
	return append([]*Event(nil), m.events...)
}

func (m *MemorySink) Kinds() []Kind {
	m.lk.Lock()
	defer m.lk.Unlock()
	kinds := make([]Kind, 0, len(m.events))
	for _, ev := range m.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}
