package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"littlelemon/internal/logger"
	"littlelemon/internal/models"
)

const publishTimeout = 5 * time.Second

// Publisher publishes order events to the orders topic exchange
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// PublishOrderEvent publishes event with routing key "order.<type>". A lost connection
// gets one dial attempt; it fails fast with ErrReconnecting if another reconnect is running.
func (p *Publisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	if p.conn.IsClosed() {
		if err := p.conn.TryReconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	publishing, err := orderEventPublishing(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	routingKey := event.RoutingKey()
	ch := p.conn.Channel()
	if ch == nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, amqp091.ErrClosed)
	}
	err = ch.PublishWithContext(ctx, OrdersExchange, routingKey, false, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	p.logger.Debug("message_published", fmt.Sprintf("Published %s", routingKey), event.RequestID, map[string]interface{}{
		"exchange":     OrdersExchange,
		"routing_key":  routingKey,
		"order_id":     event.OrderID,
		"message_size": len(publishing.Body),
	})
	return nil
}

func orderEventPublishing(event *models.OrderEvent) (amqp091.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: event.RequestID,
		Type:          string(event.Type),
		Timestamp:     event.Timestamp,
		Body:          body,
	}, nil
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}
