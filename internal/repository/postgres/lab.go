package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
)

func (r *labRepository) CreateRequest(ctx context.Context, req *model.TestRequest) error {
	query := `
		INSERT INTO test_requests (
			id, appointment_id, doctor_id, lab_technician_id,
			test_type, notes, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = model.TestRequestPending
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt

	_, err := r.exec(ctx, query,
		req.ID,
		req.AppointmentID,
		req.DoctorID,
		req.LabTechnicianID,
		req.TestType,
		req.Notes,
		req.Status,
		req.CreatedAt,
	)
	return err
}

func (r *labRepository) GetRequest(ctx context.Context, id uuid.UUID) (*model.TestRequest, error) {
	query := `
		SELECT id, appointment_id, doctor_id, lab_technician_id,
			test_type, COALESCE(notes, '') AS notes, status, created_at, updated_at
		FROM test_requests
		WHERE id = $1
	`
	var req model.TestRequest
	if err := r.get(ctx, &req, query, id); err != nil {
		return nil, lookupErr("test request", err)
	}
	return &req, nil
}

func (r *labRepository) CompleteRequest(ctx context.Context, id, technicianID uuid.UUID) (bool, error) {
	return r.compareAndSet(ctx, `
		UPDATE test_requests
		SET status = 'completed', lab_technician_id = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'in_progress')
	`, id, technicianID)
}

func (r *labRepository) CreateResult(ctx context.Context, result *model.TestResult) error {
	query := `
		INSERT INTO test_results (
			id, test_request_id, lab_technician_id, result, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	result.CreatedAt = time.Now()
	result.UpdatedAt = result.CreatedAt

	_, err := r.exec(ctx, query,
		result.ID,
		result.TestRequestID,
		result.LabTechnicianID,
		result.Result,
		result.Notes,
		result.CreatedAt,
	)
	return err
}
