package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/82deutschmark/Disavowed/internal/interfaces"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.MissionEventPublisher = (*rabbitMQEventPublisher)(nil)

const (
	publishTimeout  = 10 * time.Second
	publishAttempts = 3
)

type rabbitMQEventPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQEventPublisher opens a channel on the given connection and
// declares the mission events queue. Queue parameters must match any consumer
// declaring the same queue: durable, not auto-deleted, no dead-lettering.
func NewRabbitMQEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (interfaces.MissionEventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("event publisher: failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("event publisher: failed to declare queue %q: %w", queueName, err)
	}

	log := logger.Named("MissionEventPublisher")
	log.Info("Mission events queue declared", zap.String("queue", queueName))
	return &rabbitMQEventPublisher{channel: ch, queueName: queueName, logger: log}, nil
}

// PublishMissionEvent sends one event to the configured queue. The caller
// treats failures as fire-and-forget; this method still reports them so the
// caller can log.
func (p *rabbitMQEventPublisher) PublishMissionEvent(ctx context.Context, event interfaces.MissionEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal mission event %s: %w", event.EventType, err)
	}
	return p.publishMessage(ctx, body, string(event.EventType))
}

func (p *rabbitMQEventPublisher) publishMessage(ctx context.Context, body []byte, eventType string) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (default)
			p.queueName, // routing key (queue name)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "disavowed-core",
			},
		)
		if err == nil {
			p.logger.Debug("Mission event published",
				zap.String("queue", p.queueName),
				zap.String("event_type", eventType),
				zap.Int("attempt", attempt))
			return nil
		}
		p.logger.Warn("Failed to publish mission event",
			zap.String("queue", p.queueName),
			zap.String("event_type", eventType),
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return fmt.Errorf("failed to publish to queue %s after %d attempts: %w", p.queueName, publishAttempts, err)
}
