package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/opsmind/ticket-service/internal/broker"
	"github.com/opsmind/ticket-service/internal/domain"
	"github.com/opsmind/ticket-service/internal/observability"
)

// Publisher announces committed ticket mutations to external consumers.
type Publisher interface {
	Publish(ctx context.Context, eventType EventType, ticket *domain.Ticket) error
}

// ChannelProvider hands out the live broker channel. The channel must be
// re-fetched per publish; it is replaced after a reconnect.
type ChannelProvider interface {
	Channel() (broker.Channel, error)
}

type amqpPublisher struct {
	channels ChannelProvider
	exchange string
	metrics  *observability.Metrics
}

// NewAMQPPublisher builds a publisher targeting the durable topic exchange.
func NewAMQPPublisher(channels ChannelProvider, exchange string, metrics *observability.Metrics) Publisher {
	return &amqpPublisher{channels: channels, exchange: exchange, metrics: metrics}
}

// Publish serializes the envelope and hands it to the active channel with
// persistent delivery. It is fire-and-forget: no broker acknowledgment is
// awaited, there is no buffering and no retry. A failure surfaces to the
// caller, whose mutation has already been committed and is not rolled back.
func (p *amqpPublisher) Publish(ctx context.Context, eventType EventType, ticket *domain.Ticket) error {
	channel, err := p.channels.Channel()
	if err != nil {
		p.metrics.RecordPublishFailure(string(eventType))
		return err
	}

	envelope := Envelope{
		EventType:  eventType,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
		Data:       Snapshot(ticket),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		p.metrics.RecordPublishFailure(string(eventType))
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	err = channel.PublishWithContext(ctx, p.exchange, string(eventType), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.metrics.RecordPublishFailure(string(eventType))
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	p.metrics.RecordEventPublished(string(eventType))
	return nil
}
