package shop

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
	EventOrdersPurged   = "OrdersPurged"
)

// Envelope is the v1 wrapper every published event travels in.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID     int64       `json:"order_id"`
	UserID      int64       `json:"user_id"`
	Lines       []OrderLine `json:"lines"`
	Total       int64       `json:"total"`
	CartLineIDs []int64     `json:"cart_line_ids,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
}

type OrdersPurgedPayload struct {
	UserID   int64   `json:"user_id"`
	OrderIDs []int64 `json:"order_ids"`
}

// NewEnvelope wraps payload; correlation is the order id when there is one.
func NewEnvelope(eventType, producer string, correlation int64, payload any, at time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   at.UTC(),
		Producer:     producer,
		Payload:      raw,
	}
	if correlation != 0 {
		env.CorrelationID = strconv.FormatInt(correlation, 10)
	}
	return env, nil
}

// Decode unmarshals the payload into T.
func Decode[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return t, nil
}
