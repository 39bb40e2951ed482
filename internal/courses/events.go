package courses

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventPaymentRecorded    = "PaymentRecorded"
	EventEntitlementChanged = "EntitlementChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // enrollment_id
	Payload       json.RawMessage `json:"payload"`
}

type PaymentRecordedPayload struct {
	EnrollmentID    string `json:"enrollment_id"`
	UserID          string `json:"user_id"`
	CourseID        string `json:"course_id"`
	PaymentID       string `json:"payment_id"`
	ExternalID      string `json:"external_id"`
	AmountCents     int64  `json:"amount_cents"`
	AmountPaidCents int64  `json:"amount_paid_cents"` // cumulative, after this payment
}

type EntitlementChangedPayload struct {
	EnrollmentID     string   `json:"enrollment_id"`
	UserID           string   `json:"user_id"`
	CourseID         string   `json:"course_id"`
	AmountPaidCents  int64    `json:"amount_paid_cents"`
	UnlockedSections []string `json:"unlocked_sections"`
	NewlyUnlocked    []string `json:"newly_unlocked"`
}

// NewEnvelope wraps payload in a version 1 envelope with a fresh event id.
func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}
