package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

const DefaultExchange = "sophon.connector"

var _ Sink = (*AMQPSink)(nil)

// AMQPSink publishes events as JSON to a durable topic exchange, routed by
// "wallet.<kind>.<wallet id>".
type AMQPSink struct {
	exchange string

	lk   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPSink(uri, exchange string) (*AMQPSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp broker")
	}
	s := &AMQPSink{exchange: exchange, conn: conn}
	if err := s.setup(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Infof("publishing lifecycle events to exchange %s", exchange)
	return s, nil
}

func (s *AMQPSink) setup() error {
	// obtain a one-use channel
	channel, err := s.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close() // nolint: errcheck
	return channel.ExchangeDeclare(s.exchange, amqp.ExchangeTopic, true, false, false, false, nil)
}

func RoutingKey(ev *Event) string {
	wallet := string(ev.Wallet)
	if wallet == "" {
		wallet = "none"
	}
	return "wallet." + string(ev.Kind) + "." + wallet
}

func (s *AMQPSink) Publish(ctx context.Context, ev *Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	// obtain channel if not present
	if s.ch == nil {
		if s.ch, err = s.conn.Channel(); err != nil {
			return err
		}
	}
	msg := amqp.Publishing{
		Headers:     amqp.Table{"x-event-name": string(ev.Kind)},
		Body:        body,
		ContentType: "application/json",
		Timestamp:   ev.Time,
	}
	if err := s.ch.Publish(s.exchange, RoutingKey(ev), false, false, msg); err != nil {
		// the channel is unusable after an error, reopen on next publish
		_ = s.ch.Close()
		s.ch = nil
		return errors.Wrapf(err, "publish %s", ev.Kind)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if s.ch != nil {
		if err := s.ch.Close(); err != nil {
			log.Warnf("close amqp channel: %v", err)
		}
		s.ch = nil
	}
	return s.conn.Close()
}
