package domain

import "time"

// OrderEvent is broadcast after every committed transition.
type OrderEvent struct {
	EventID      string      `json:"eventId"`
	OrderID      string      `json:"orderId"`
	VendorID     string      `json:"vendorId"`
	BusinessID   string      `json:"businessId"`
	Status       OrderStatus `json:"status"`
	Action       AuditAction `json:"action"`
	ActorID      string      `json:"actorId"`
	AuditEntryID string      `json:"auditEntryId"`
	Timestamp    time.Time   `json:"timestamp"`
}

// ScoreChangedEvent is broadcast after every persisted score change.
type ScoreChangedEvent struct {
	EventID       string    `json:"eventId"`
	VendorID      string    `json:"vendorId"`
	PreviousScore float64   `json:"previousScore"`
	NewScore      float64   `json:"newScore"`
	Delta         float64   `json:"delta"`
	Trigger       string    `json:"trigger"`
	Timestamp     time.Time `json:"timestamp"`
}
