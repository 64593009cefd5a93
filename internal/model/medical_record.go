package model

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord holds the clinical outcome of one appointment. There is at
// most one record per appointment.
type MedicalRecord struct {
	Base
	AppointmentID   uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID        *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	Diagnosis       string     `db:"diagnosis" json:"diagnosis"`
	Notes           string     `db:"notes" json:"notes,omitempty"`
	Recommendations string     `db:"recommendations" json:"recommendations,omitempty"`
	FollowupDate    *time.Time `db:"followup_date" json:"followup_date,omitempty"`
}
