package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
)

func (r *staffRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `
		SELECT id, user_id, name, specialty_id, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`
	var d model.Doctor
	if err := r.get(ctx, &d, query, id); err != nil {
		return nil, lookupErr("doctor", err)
	}
	return &d, nil
}

func (r *staffRepository) GetLabTechnician(ctx context.Context, id uuid.UUID) (*model.LabTechnician, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM lab_technicians
		WHERE id = $1
	`
	var t model.LabTechnician
	if err := r.get(ctx, &t, query, id); err != nil {
		return nil, lookupErr("lab technician", err)
	}
	return &t, nil
}
