// Package event publishes domain events to a RabbitMQ topic exchange.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type is the routing key of a domain event.
type Type string

const (
	AssessmentCompleted  Type = "assessment.completed"
	CertificateRequested Type = "certificate.requested"
)

// Event is the envelope every domain event is published in.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	UserID     int       `json:"user_id"`
	SessionID  uuid.UUID `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// New builds an event with a fresh id.
func New(t Type, userID int, sessionID uuid.UUID, data any) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
