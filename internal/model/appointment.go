package model

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the administrative status of a booking.
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// FlowStatus is the patient-flow position inside the clinic.
type FlowStatus string

const (
	FlowWaiting   FlowStatus = "waiting"
	FlowExamining FlowStatus = "examining"
	FlowExamined  FlowStatus = "examined"
)

var flowTransitions = map[FlowStatus][]FlowStatus{
	FlowWaiting:   {FlowExamining, FlowExamined},
	FlowExamining: {FlowWaiting, FlowExamined},
	FlowExamined:  {},
}

func (s FlowStatus) Valid() bool {
	_, ok := flowTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is in the allowed set for s.
func (s FlowStatus) CanTransitionTo(next FlowStatus) bool {
	for _, allowed := range flowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s FlowStatus) Terminal() bool {
	return s.Valid() && len(flowTransitions[s]) == 0
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Appointment struct {
	Base
	PatientID     uuid.UUID         `db:"patient_id" json:"patient_id"`
	PatientUserID uuid.UUID         `db:"patient_user_id" json:"-"`
	DoctorID      *uuid.UUID        `db:"doctor_id" json:"doctor_id,omitempty"`
	RoomID        *uuid.UUID        `db:"room_id" json:"room_id,omitempty"`
	ScheduleID    *uuid.UUID        `db:"schedule_id" json:"schedule_id,omitempty"`
	Status        AppointmentStatus `db:"status" json:"status"`
	FlowStatus    FlowStatus        `db:"patient_status" json:"patient_status"`
	PaymentStatus PaymentStatus     `db:"payment_status" json:"payment_status"`
	Reason        string            `db:"reason" json:"reason,omitempty"`
	CancelReason  *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

// Finished reports whether the encounter is over, administratively or in
// the patient flow.
func (a *Appointment) Finished() bool {
	return a.Status == AppointmentStatusCompleted || a.FlowStatus == FlowExamined
}

type UpdateFlowStatusRequest struct {
	Status FlowStatus `json:"status" binding:"required,oneof=waiting examining examined"`
	Force  bool       `json:"force"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

type ReserveScheduleRequest struct {
	ScheduleID uuid.UUID `json:"schedule_id" binding:"required"`
}

// ExaminationInput is what a clinician submits when finishing an encounter.
type ExaminationInput struct {
	Diagnosis       string     `json:"diagnosis" binding:"required,max=4000"`
	Notes           string     `json:"notes" binding:"max=4000"`
	Recommendations string     `json:"recommendations" binding:"max=4000"`
	FollowupDate    *time.Time `json:"followup_date"`
	AdditionalInfo  string     `json:"additional_info" binding:"max=2000"`
}
