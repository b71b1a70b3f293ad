package events

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type failSink struct{ closed bool }

func (f *failSink) Publish(context.Context, *Event) error { return errors.New("mock error") }

func (f *failSink) Close() error {
	f.closed = true
	return nil
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	mem := &MemorySink{}
	fail := &failSink{}
	sink := MultiSink{fail, LogSink{}, mem, Nop()}

	err := sink.Publish(ctx, &Event{Kind: Connected, Wallet: "injected", Time: time.Now()})
	require.EqualError(t, err, "mock error")
	require.Equal(t, []Kind{Connected}, mem.Kinds())

	require.NoError(t, sink.Close())
	require.True(t, fail.closed)
}

func TestMemorySinkCopies(t *testing.T) {
	ctx := context.Background()
	mem := &MemorySink{}
	ev := &Event{Kind: ChainChanged, Wallet: "inapp", ChainID: 1}
	require.NoError(t, mem.Publish(ctx, ev))
	ev.ChainID = 137

	events := mem.Events()
	require.Len(t, events, 1)
	require.Equal(t, uint64(1), events[0].ChainID)
}

func TestRoutingKey(t *testing.T) {
	require.Equal(t, "wallet.connected.injected", RoutingKey(&Event{Kind: Connected, Wallet: "injected"}))
	require.Equal(t, "wallet.restore_failed.none", RoutingKey(&Event{Kind: RestoreFailed}))
}

func TestAMQPSink(t *testing.T) {
	uri := os.Getenv("SOPHON_TEST_AMQP_URI")
	if uri == "" {
		t.Skip("SOPHON_TEST_AMQP_URI not set")
	}
	sink, err := NewAMQPSink(uri, "sophon.connector.test")
	require.NoError(t, err)
	defer sink.Close() // nolint: errcheck

	require.NoError(t, sink.Publish(context.Background(), &Event{Kind: Connected, Wallet: "injected", Time: time.Now()}))
}
