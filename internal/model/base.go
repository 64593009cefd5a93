package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StaffKind identifies which staff table a schedule or on-duty check refers to.
type StaffKind string

const (
	StaffDoctor        StaffKind = "doctor"
	StaffLabTechnician StaffKind = "lab_technician"
)

func (k StaffKind) Valid() bool {
	return k == StaffDoctor || k == StaffLabTechnician
}

// ParseStaffKind accepts the URL spellings used by route handlers.
func ParseStaffKind(s string) (StaffKind, bool) {
	switch s {
	case "doctor", "doctors":
		return StaffDoctor, true
	case "lab_technician", "lab-technician", "labTechnician", "lab_technicians", "lab-technicians":
		return StaffLabTechnician, true
	}
	return "", false
}
