package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
)

const defaultRedialInterval = 5 * time.Second

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("events: publisher closed")

type amqpConnection interface {
	IsClosed() bool
	Close() error
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// dialFunc opens a connection and a channel with the exchange declared.
type dialFunc func(url, exchange string) (amqpConnection, amqpChannel, error)

// AMQPPublisher publishes JSON order events to a durable topic exchange,
// routed by event type. A connection or channel closed by the broker is
// reopened on the next publish, at most once per redial interval.
type AMQPPublisher struct {
	url            string
	exchange       string
	dial           dialFunc
	redialInterval time.Duration
	now            func() time.Time

	mu       sync.Mutex
	conn     amqpConnection
	channel  amqpChannel
	lastDial time.Time
	closed   bool
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := newPublisher(url, exchange, dialAMQP)
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(url, exchange string, dial dialFunc) *AMQPPublisher {
	return &AMQPPublisher{
		url:            url,
		exchange:       exchange,
		dial:           dial,
		redialInterval: defaultRedialInterval,
		now:            time.Now,
	}
}

func dialAMQP(url, exchange string) (amqpConnection, amqpChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

// connect must be called with mu held or before the publisher is shared.
func (p *AMQPPublisher) connect() error {
	p.lastDial = p.now()
	conn, ch, err := p.dial(p.url, p.exchange)
	if err != nil {
		return err
	}
	p.conn, p.channel = conn, ch
	return nil
}

func (p *AMQPPublisher) healthy() bool {
	return p.channel != nil && !p.channel.IsClosed() && p.conn != nil && !p.conn.IsClosed()
}

// drop releases a dead connection; close errors on it carry no information.
func (p *AMQPPublisher) drop() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.channel = nil, nil
}

// ensure reopens the connection when it is gone. Unless force is set,
// redials are spaced by redialInterval so an unreachable broker is not
// dialled on every publish.
func (p *AMQPPublisher) ensure(force bool) error {
	if p.healthy() {
		return nil
	}
	p.drop()
	if !force {
		if wait := p.redialInterval - p.now().Sub(p.lastDial); wait > 0 {
			return fmt.Errorf("rabbitmq unavailable, next reconnect in %s", wait.Round(time.Millisecond))
		}
	}
	return p.connect()
}

func (p *AMQPPublisher) Publish(ctx context.Context, event OrderEvent) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if err := p.ensure(false); err != nil {
		return err
	}

	err = p.publish(ctx, event.Type, msg)
	if errors.Is(err, amqp.ErrClosed) {
		// The broker went away since the last publish; one immediate retry.
		p.drop()
		if err := p.ensure(true); err != nil {
			return err
		}
		err = p.publish(ctx, event.Type, msg)
	}
	return err
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		msg,
	)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var errs error
	if p.channel != nil && !p.channel.IsClosed() {
		errs = multierr.Append(errs, p.channel.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = multierr.Append(errs, p.conn.Close())
	}
	p.conn, p.channel = nil, nil
	return errs
}

func buildMessage(event OrderEvent) (amqp.Publishing, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		ContentType:  "application/json",
		Type:         event.Type,
		MessageId:    event.OrderID + ":" + event.Type + ":" + event.Status,
		Body:         body,
	}, nil
}
