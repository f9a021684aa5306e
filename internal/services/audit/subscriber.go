package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"littlelemon/internal/logger"
	"littlelemon/internal/messaging"
	"littlelemon/internal/models"
)

// Consumer delivers queued messages to a handler until ctx is done.
type Consumer interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Subscriber consumes order events and writes an audit line for each.
type Subscriber struct {
	consumer Consumer
	logger   *logger.Logger
	out      io.Writer
}

func NewSubscriber(consumer Consumer, log *logger.Logger, out io.Writer) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   log,
		out:      out,
	}
}

// Run blocks until ctx is cancelled or the consumer fails.
func (s *Subscriber) Run(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Audit subscriber started", requestID, nil)

	err := s.consumer.StartConsuming(ctx, s.HandleEvent)

	s.logger.Info("graceful_shutdown", "Stopping audit subscriber", requestID, nil)
	if closeErr := s.consumer.Close(); closeErr != nil {
		s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, closeErr, nil)
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// HandleEvent decodes one order event. Bodies that cannot be decoded are dropped.
func (s *Subscriber) HandleEvent(ctx context.Context, routingKey string, body []byte) error {
	var event models.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("failed to parse order event: %w", err))
	}
	if event.OrderID <= 0 || event.Type == "" {
		return messaging.Permanent(errors.New("order event missing type or order id"))
	}

	fields := map[string]interface{}{
		"event":       string(event.Type),
		"routing_key": routingKey,
		"order_id":    event.OrderID,
		"user_id":     event.UserID,
		"status":      event.Status,
		"total":       event.Total.String(),
		"changed_by":  event.ChangedBy,
	}
	if event.DeliveryCrewID != nil {
		fields["delivery_crew_id"] = *event.DeliveryCrewID
	}
	if routingKey != event.RoutingKey() {
		s.logger.Warn("routing_key_mismatch", "Routing key does not match event type", event.RequestID, fields)
	}
	s.logger.Info("order_event_received", "Order event recorded", event.RequestID, fields)

	if _, err := fmt.Fprintln(s.out, Format(&event)); err != nil {
		return fmt.Errorf("failed to write audit line: %w", err)
	}
	return nil
}

// Format renders a one-line human readable description of event.
func Format(event *models.OrderEvent) string {
	ts := event.Timestamp.Format("2006-01-02 15:04:05")

	switch event.Type {
	case models.EventOrderCreated:
		return fmt.Sprintf("[%s] Order #%d placed by user %d, total %s.", ts, event.OrderID, event.UserID, event.Total.StringFixed(2))
	case models.EventOrderCrewAssigned:
		crew := "nobody"
		if event.DeliveryCrewID != nil {
			crew = fmt.Sprintf("user %d", *event.DeliveryCrewID)
		}
		return fmt.Sprintf("[%s] Order #%d assigned to %s by %s.", ts, event.OrderID, crew, event.ChangedBy)
	case models.EventOrderDelivered:
		return fmt.Sprintf("[%s] Order #%d delivered, confirmed by %s.", ts, event.OrderID, event.ChangedBy)
	case models.EventOrderPaid:
		return fmt.Sprintf("[%s] Order #%d paid (%s).", ts, event.OrderID, event.Total.StringFixed(2))
	case models.EventOrderDeleted:
		return fmt.Sprintf("[%s] Order #%d deleted by %s.", ts, event.OrderID, event.ChangedBy)
	default:
		return fmt.Sprintf("[%s] Order #%d: %s by %s.", ts, event.OrderID, event.Type, event.ChangedBy)
	}
}
