package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeExamination  Type = "examination"
	TypeAppointment  Type = "appointment"
	TypeTestResult   Type = "test_result"
	TypePrescription Type = "prescription"
	TypeTestRequest  Type = "test_request"
)

// AllTypes lists every event type the bus carries.
var AllTypes = []Type{TypeExamination, TypeAppointment, TypeTestResult, TypePrescription, TypeTestRequest}

// Event is a tagged payload; which fields are set depends on Type.
type Event struct {
	Type           Type       `json:"type"`
	AppointmentID  uuid.UUID  `json:"appointment_id"`
	OccurredAt     time.Time  `json:"occurred_at"`
	Diagnosis      string     `json:"diagnosis,omitempty"`
	AdditionalInfo string     `json:"additional_info,omitempty"`
	Status         string     `json:"status,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	TestRequestID  *uuid.UUID `json:"test_request_id,omitempty"`
	TestType       string     `json:"test_type,omitempty"`
	Result         string     `json:"result,omitempty"`
	Medication     string     `json:"medication,omitempty"`
}

// Subscriber receives events for the types it is registered under. Two
// subscribers with the same ID are the same handle.
type Subscriber interface {
	ID() string
	Notify(ctx context.Context, evt Event) error
}

type funcSubscriber struct {
	id string
	fn func(ctx context.Context, evt Event) error
}

// NewSubscriber adapts a function into a Subscriber.
func NewSubscriber(id string, fn func(ctx context.Context, evt Event) error) Subscriber {
	return &funcSubscriber{id: id, fn: fn}
}

func (s *funcSubscriber) ID() string { return s.id }

func (s *funcSubscriber) Notify(ctx context.Context, evt Event) error {
	return s.fn(ctx, evt)
}
