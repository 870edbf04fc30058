package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ignatzorin/services-marketplace/internal/domain/event"
	"github.com/ignatzorin/services-marketplace/internal/logger"
)

const publishTimeout = 10 * time.Second

// channel часть amqp.Channel, нужная публикатору.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher публикует события заявок в topic exchange с ключом service_request.<kind>.
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch channel
}

// Dial подключается к брокеру и объявляет exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, exchange: exchange, ch: ch}, nil
}

// RoutingKey ключ маршрутизации события.
func RoutingKey(kind event.Kind) string {
	return "service_request." + string(kind)
}

func (p *Publisher) Dispatch(ctx context.Context, ev event.RequestEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("broker: marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		MessageId:    ev.RequestID.String() + ":" + string(ev.Kind),
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.ch.PublishWithContext(publishCtx, p.exchange, RoutingKey(ev.Kind), false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("broker: publish %s: %w", ev.Kind, err)
	}

	if logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"exchange":   p.exchange,
			"kind":       ev.Kind,
			"request_id": ev.RequestID,
		}).Debug("broker: событие опубликовано")
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
