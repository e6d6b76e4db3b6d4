package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/little-lemon/internal/money"
)

const (
	EventOrderPlaced  = "OrderPlaced"
	EventOrderUpdated = "OrderUpdated"
	EventOrderDeleted = "OrderDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	MenuItemID int64        `json:"menuitem"`
	Quantity   int          `json:"quantity"`
	Price      money.Amount `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID int64        `json:"order_id"`
	UserID  int64        `json:"user_id"`
	Total   money.Amount `json:"total"`
	Date    Date         `json:"date"`
	Items   []ItemLine   `json:"items"`
}

type OrderUpdatedPayload struct {
	OrderID        int64        `json:"order_id"`
	ActorID        int64        `json:"actor_id"`
	Fields         []string     `json:"fields"`
	Status         Status       `json:"status"`
	DeliveryCrewID *int64       `json:"delivery_crew,omitempty"`
	Total          money.Amount `json:"total"`
}

type OrderDeletedPayload struct {
	OrderID int64 `json:"order_id"`
	ActorID int64 `json:"actor_id"`
}

// Sink accepts an encoded message for one topic.
type Sink interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header)
}

// EventPublisher wraps order changes in an Envelope and hands them to the
// sink registered for the event's topic. Topics without a sink are dropped.
type EventPublisher struct {
	Sinks   map[string]Sink
	Service string
	Now     func() time.Time
}

func (p *EventPublisher) OrderPlaced(ctx context.Context, o Order, traceID string) error {
	items := make([]ItemLine, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemLine{MenuItemID: it.MenuItemID, Quantity: it.Quantity, Price: it.Price})
	}
	return p.publish(ctx, TopicOrderPlaced, EventOrderPlaced, o.ID, traceID, OrderPlacedPayload{
		OrderID: o.ID, UserID: o.UserID, Total: o.Total, Date: o.Date, Items: items,
	})
}

func (p *EventPublisher) OrderUpdated(ctx context.Context, o Order, fields []string, actorID int64, traceID string) error {
	return p.publish(ctx, TopicOrderUpdated, EventOrderUpdated, o.ID, traceID, OrderUpdatedPayload{
		OrderID: o.ID, ActorID: actorID, Fields: fields,
		Status: o.Status, DeliveryCrewID: o.DeliveryCrewID, Total: o.Total,
	})
}

func (p *EventPublisher) OrderDeleted(ctx context.Context, orderID, actorID int64, traceID string) error {
	return p.publish(ctx, TopicOrderDeleted, EventOrderDeleted, orderID, traceID, OrderDeletedPayload{
		OrderID: orderID, ActorID: actorID,
	})
}

func (p *EventPublisher) publish(ctx context.Context, topic, eventType string, orderID int64, traceID string, payload any) error {
	sink, ok := p.Sinks[topic]
	if !ok || sink == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now().UTC(),
		Producer:      p.Service,
		TraceID:       traceID,
		CorrelationID: string(PartitionKey(orderID)),
		Payload:       raw,
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	sink.Publish(ctx, PartitionKey(orderID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}
