package queue

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/octabyte/bm-session/events"
	"github.com/octabyte/bm-session/utils"
)

var _ events.Publisher = (*EventPublisher)(nil)

// EventPublisher publishes session events as persistent JSON messages.
// The routing key is <prefix>.<event type>, e.g. bm.session.routed.
type EventPublisher struct {
	mu     sync.Mutex
	ch     *amqp.Channel
	config Config
}

func NewEventPublisher(conn *Connection) *EventPublisher {
	return &EventPublisher{ch: conn.Ch, config: conn.config}
}

func (p *EventPublisher) Publish(ctx context.Context, event events.Event) error {
	message, err := newMessage(ctx, event)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(
		ctx,
		p.config.Exchange,
		RoutingKey(p.config.RoutingKeyPrefix, event.Type),
		false, // mandatory
		false, // immediate
		message,
	)
}

// Close closes the publisher, releasing any resources it holds.
func (p *EventPublisher) Close() error {
	return p.ch.Close()
}

func RoutingKey(prefix string, eventType events.Type) string {
	if prefix == "" {
		return string(eventType)
	}
	return prefix + "." + string(eventType)
}

func newMessage(ctx context.Context, event events.Event) (amqp.Publishing, error) {
	body, err := utils.StructToBytes(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event %s: %w", event.Type, err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := amqp.Table{}
	for k, v := range carrier {
		headers[k] = v
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Headers:      headers,
		Body:         body,
	}, nil
}
