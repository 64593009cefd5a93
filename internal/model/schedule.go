package model

import (
	"fmt"

	"github.com/google/uuid"
)

type ScheduleStatus string

const (
	ScheduleAvailable ScheduleStatus = "available"
	ScheduleActive    ScheduleStatus = "active"
	ScheduleBooked    ScheduleStatus = "booked"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// OnDuty reports whether a shift in this status counts as working time.
func (s ScheduleStatus) OnDuty() bool {
	return s == ScheduleAvailable || s == ScheduleActive
}

// Schedule is one shift of a doctor or a lab technician, never both.
type Schedule struct {
	Base
	DoctorID        *uuid.UUID      `db:"doctor_id" json:"doctor_id,omitempty"`
	LabTechnicianID *uuid.UUID      `db:"lab_technician_id" json:"lab_technician_id,omitempty"`
	WorkDate        ShiftDate       `db:"work_date" json:"work_date"`
	StartTime       TimeOfDay       `db:"start_time" json:"start_time"`
	EndTime         TimeOfDay       `db:"end_time" json:"end_time"`
	RoomID          *uuid.UUID      `db:"room_id" json:"room_id,omitempty"`
	Status          ScheduleStatus  `db:"status" json:"status"`
	// ReservedFrom is the status a booked shift returns to on release.
	ReservedFrom    *ScheduleStatus `db:"reserved_from" json:"-"`
}

// Owner returns the staff member holding the shift.
func (s *Schedule) Owner() (uuid.UUID, StaffKind) {
	if s.DoctorID != nil {
		return *s.DoctorID, StaffDoctor
	}
	if s.LabTechnicianID != nil {
		return *s.LabTechnicianID, StaffLabTechnician
	}
	return uuid.Nil, ""
}

func (s *Schedule) Validate() error {
	if (s.DoctorID == nil) == (s.LabTechnicianID == nil) {
		return fmt.Errorf("schedule must belong to exactly one of doctor or lab technician")
	}
	start, err := NormalizeClock(s.StartTime)
	if err != nil {
		return fmt.Errorf("start time: %w", err)
	}
	end, err := NormalizeClock(s.EndTime)
	if err != nil {
		return fmt.Errorf("end time: %w", err)
	}
	if start >= end {
		return fmt.Errorf("start time %s must be before end time %s", start, end)
	}
	return nil
}

// Covers reports whether the shift is on duty at the given canonical date
// and clock. End time is inclusive.
func (s *Schedule) Covers(date, clock string) bool {
	return s.Status.OnDuty() && s.Spans(date, clock)
}

// Spans reports whether the shift's window contains the given canonical
// date and clock, whatever its status.
func (s *Schedule) Spans(date, clock string) bool {
	d, err := NormalizeDate(s.WorkDate)
	if err != nil || d != date {
		return false
	}
	start, err := NormalizeClock(s.StartTime)
	if err != nil {
		return false
	}
	end, err := NormalizeClock(s.EndTime)
	if err != nil {
		return false
	}
	return start <= clock && clock <= end
}
