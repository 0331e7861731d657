package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

const (
	DefaultExchange = "oauth.events"

	RoutingLoginSucceeded = "oauth.login.succeeded"
	RoutingTokenRefreshed = "oauth.token.refreshed"

	// how long to wait for a basic.return after the broker acked
	returnGrace = 150 * time.Millisecond
)

// Publisher sends JSON events to a durable topic exchange with publisher
// confirms and mandatory delivery. One channel, serialized by mu.
type Publisher struct {
	url      string
	exchange string
	log      zerolog.Logger

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange string, lg zerolog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{
		url:      url,
		exchange: exchange,
		log:      lg.With().Str("component", "rabbitmq_publisher").Logger(),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetConn()
	return nil
}

func (p *Publisher) PublishLoginSucceeded(ctx context.Context, evt auth.LoginSucceededEvent) error {
	return p.publishJSON(ctx, RoutingLoginSucceeded, evt)
}

func (p *Publisher) PublishTokenRefreshed(ctx context.Context, evt auth.TokenRefreshedEvent) error {
	return p.publishJSON(ctx, RoutingTokenRefreshed, evt)
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return domain.ErrRabbitUnavailable(fmt.Errorf("dial: %w", err))
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return domain.ErrRabbitUnavailable(fmt.Errorf("channel: %w", err))
	}

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return domain.ErrRabbitUnavailable(fmt.Errorf("exchange declare: %w", err))
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return domain.ErrRabbitUnavailable(fmt.Errorf("confirm mode: %w", err))
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) ensureConnected() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}
	p.resetConn()
	return p.connect()
}

func (p *Publisher) resetConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ErrInternal(err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(); err != nil {
		return err
	}

	// drop stale confirms/returns from a timed-out publish
drain:
	for {
		select {
		case <-p.confirmCh:
		case <-p.returnCh:
		default:
			break drain
		}
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.resetConn()
		return domain.ErrRabbitUnavailable(fmt.Errorf("publish: %w", err))
	}

	select {
	case ret := <-p.returnCh:
		return unroutable(routingKey, ret)

	case conf := <-p.confirmCh:
		if !conf.Ack {
			return domain.ErrRabbitUnavailable(fmt.Errorf("nack: key=%s tag=%d", routingKey, conf.DeliveryTag))
		}
		// a return for a mandatory publish may trail the ack on the Go side
		t := time.NewTimer(returnGrace)
		defer t.Stop()
		select {
		case ret := <-p.returnCh:
			return unroutable(routingKey, ret)
		case <-t.C:
		}
		p.log.Debug().Str("routing_key", routingKey).Uint64("tag", conf.DeliveryTag).Msg("event published")
		return nil

	case <-ctx.Done():
		p.resetConn()
		return domain.ErrRabbitUnavailable(ctx.Err())
	}
}

func unroutable(key string, ret amqp.Return) error {
	return domain.ErrRabbitUnavailable(fmt.Errorf("unroutable: key=%s code=%d text=%s", key, ret.ReplyCode, ret.ReplyText))
}
