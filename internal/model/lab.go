package model

import "github.com/google/uuid"

type TestRequestStatus string

const (
	TestRequestPending    TestRequestStatus = "pending"
	TestRequestInProgress TestRequestStatus = "in_progress"
	TestRequestCompleted  TestRequestStatus = "completed"
	TestRequestCancelled  TestRequestStatus = "cancelled"
)

type TestRequest struct {
	Base
	AppointmentID   uuid.UUID         `db:"appointment_id" json:"appointment_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	LabTechnicianID *uuid.UUID        `db:"lab_technician_id" json:"lab_technician_id,omitempty"`
	TestType        string            `db:"test_type" json:"test_type"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	Status          TestRequestStatus `db:"status" json:"status"`
}

type TestResult struct {
	Base
	TestRequestID   uuid.UUID `db:"test_request_id" json:"test_request_id"`
	LabTechnicianID uuid.UUID `db:"lab_technician_id" json:"lab_technician_id"`
	Result          string    `db:"result" json:"result"`
	Notes           string    `db:"notes" json:"notes,omitempty"`
}

type CreateTestRequestRequest struct {
	AppointmentID   uuid.UUID  `json:"appointment_id" binding:"required"`
	DoctorID        uuid.UUID  `json:"doctor_id" binding:"required"`
	LabTechnicianID *uuid.UUID `json:"lab_technician_id"`
	TestType        string     `json:"test_type" binding:"required,max=200"`
	Notes           string     `json:"notes" binding:"max=2000"`
}

type EnterTestResultRequest struct {
	Result string `json:"result" binding:"required,max=8000"`
	Notes  string `json:"notes" binding:"max=2000"`
}
