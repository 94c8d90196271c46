package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a domain event on the bus.
type EventType string

const (
	EventTypeDiscountApplied    EventType = "discount.applied"
	EventTypeDiscountRemoved    EventType = "discount.removed"
	EventTypeOrderTotalsUpdated EventType = "order.totals_updated"
)

// Event is the envelope published to Kafka.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
