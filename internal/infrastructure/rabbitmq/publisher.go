package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/unifiro-api/internal/application/notification"
	"github.com/unifiro-api/internal/pkg/id"
)

// Publisher hands notifications to a topic exchange for an external mail
// worker. Publishing uses confirms and the mandatory flag, so an unroutable
// message is an error.
type Publisher struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	ret  <-chan amqp.Return
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}
	p.conn = conn
	p.ch = ch
	p.ret = ch.NotifyReturn(make(chan amqp.Return, 1))
	return nil
}

func (p *Publisher) Name() string { return "amqp" }

// Send publishes m and waits for the broker confirm.
func (p *Publisher) Send(ctx context.Context, m notification.Message) error {
	routingKey, pub, err := encode(m, time.Now().UTC())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		if p.conn != nil {
			_ = p.conn.Close()
		}
		if err := p.connect(); err != nil {
			return err
		}
	}

	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, true, false, pub)
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("amqp confirm: %w", err)
	}
	// A return for an unroutable message arrives before its ack.
	select {
	case r := <-p.ret:
		return fmt.Errorf("amqp no route for %s", r.RoutingKey)
	default:
	}
	if !ok {
		return errors.New("amqp publish nacked")
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

// encode builds the routing key notification.<kind>.<topic> and the
// persistent JSON publishing for m.
func encode(m notification.Message, now time.Time) (string, amqp.Publishing, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("encode notification: %w", err)
	}
	key := fmt.Sprintf("notification.%s.%s", m.AccountKind, m.Topic)
	return key, amqp.Publishing{
		MessageId:    id.New(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Type:         string(m.Topic),
		Body:         body,
	}, nil
}
