// Package notifier turns order events into notifications for customers and
// the delivery crew.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/little-lemon/internal/kafka"
	"github.com/ariefcatur/little-lemon/internal/orders"
	"github.com/ariefcatur/little-lemon/internal/redisx"
	"github.com/ariefcatur/little-lemon/internal/telemetry"
)

type Notification struct {
	EventID   string
	EventType string
	OrderID   int64
	// Recipient is the user the message is meant for; 0 means staff.
	Recipient int64
	Text      string
}

type Service struct {
	Redis   *redis.Client
	Log     *zap.Logger
	Metrics *telemetry.Metrics
	Name    string
	// Deliver sends a notification. Nil logs it.
	Deliver func(ctx context.Context, n Notification) error
}

// HandleOrderEvent is installed as the consumer handler. It returns nil for
// events that were delivered, already seen, or of an unknown type, so their
// offsets get committed.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.count(ctx, "unknown", "malformed")
		s.Log.Warn("dropping malformed event",
			zap.String("topic", m.Topic),
			zap.Int64("offset", m.Offset),
			zap.String("event_type", kafkax.Header(m, "x-event-type")),
			zap.Error(err))
		return nil
	}

	n, err := render(env)
	if err != nil {
		s.count(ctx, env.EventType, "malformed")
		s.Log.Warn("dropping event", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if n == nil {
		s.count(ctx, env.EventType, "ignored")
		return nil
	}

	first, err := redisx.MarkSeen(ctx, s.Redis, s.Name, env.EventID)
	if err != nil {
		// at-least-once: a Redis outage may repeat a notification
		s.Log.Warn("dedup check failed", zap.String("event_id", env.EventID), zap.Error(err))
		first = true
	}
	if !first {
		s.count(ctx, env.EventType, "duplicate")
		s.Log.Debug("duplicate event", zap.String("event_id", env.EventID))
		return nil
	}

	if err := s.deliver(ctx, *n); err != nil {
		if ferr := redisx.Forget(ctx, s.Redis, s.Name, env.EventID); ferr != nil {
			s.Log.Warn("dedup rollback failed", zap.String("event_id", env.EventID), zap.Error(ferr))
		}
		s.count(ctx, env.EventType, "failed")
		return fmt.Errorf("deliver %s: %w", env.EventID, err)
	}
	s.count(ctx, env.EventType, "delivered")
	return nil
}

func (s *Service) deliver(ctx context.Context, n Notification) error {
	if s.Deliver != nil {
		return s.Deliver(ctx, n)
	}
	s.Log.Info("notification",
		zap.String("event_id", n.EventID),
		zap.String("event_type", n.EventType),
		zap.Int64("order_id", n.OrderID),
		zap.Int64("recipient", n.Recipient),
		zap.String("text", n.Text))
	return nil
}

func (s *Service) count(ctx context.Context, eventType, outcome string) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.EventsConsumed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
}

// render builds the notification for env, or nil for event types this
// service does not handle.
func render(env orders.Envelope) (*Notification, error) {
	n := &Notification{EventID: env.EventID, EventType: env.EventType}
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return nil, err
		}
		n.OrderID, n.Recipient = p.OrderID, p.UserID
		n.Text = fmt.Sprintf("Order #%d received: %d item(s), total %s.", p.OrderID, len(p.Items), p.Total)
	case orders.EventOrderUpdated:
		p, err := kafkax.UnwrapPayload[orders.OrderUpdatedPayload](env.Payload)
		if err != nil {
			return nil, err
		}
		n.OrderID = p.OrderID
		switch {
		case containsField(p.Fields, "delivery_crew") && p.DeliveryCrewID != nil:
			n.Recipient = *p.DeliveryCrewID
			n.Text = fmt.Sprintf("Order #%d has been assigned to you.", p.OrderID)
		case containsField(p.Fields, "status") && p.Status == orders.StatusOutForDelivery:
			n.Text = fmt.Sprintf("Order #%d is out for delivery.", p.OrderID)
		default:
			n.Text = fmt.Sprintf("Order #%d was updated (%v).", p.OrderID, p.Fields)
		}
	case orders.EventOrderDeleted:
		p, err := kafkax.UnwrapPayload[orders.OrderDeletedPayload](env.Payload)
		if err != nil {
			return nil, err
		}
		n.OrderID = p.OrderID
		n.Text = fmt.Sprintf("Order #%d was cancelled.", p.OrderID)
	default:
		return nil, nil
	}
	return n, nil
}

func containsField(fields []string, f string) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
