package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

func (r *medicalRecordRepository) UpsertForAppointment(ctx context.Context, record *model.MedicalRecord) (uuid.UUID, error) {
	query := `
		INSERT INTO medical_records (
			id, appointment_id, patient_id, doctor_id,
			diagnosis, notes, recommendations, followup_date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (appointment_id) DO UPDATE SET
			doctor_id = EXCLUDED.doctor_id,
			diagnosis = EXCLUDED.diagnosis,
			notes = EXCLUDED.notes,
			recommendations = EXCLUDED.recommendations,
			followup_date = EXCLUDED.followup_date,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()

	var id uuid.UUID
	err := r.ext(ctx).QueryRowxContext(ctx, query,
		record.ID,
		record.AppointmentID,
		record.PatientID,
		record.DoctorID,
		record.Diagnosis,
		record.Notes,
		record.Recommendations,
		record.FollowupDate,
		now,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, apperrors.Storage(fmt.Errorf("upsert medical record: %w", err))
	}
	record.ID = id
	record.UpdatedAt = now
	return id, nil
}

func (r *medicalRecordRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.MedicalRecord, error) {
	query := `
		SELECT id, appointment_id, patient_id, doctor_id,
			diagnosis, COALESCE(notes, '') AS notes,
			COALESCE(recommendations, '') AS recommendations,
			followup_date, created_at, updated_at
		FROM medical_records
		WHERE appointment_id = $1
	`
	var rec model.MedicalRecord
	if err := r.get(ctx, &rec, query, appointmentID); err != nil {
		return nil, lookupErr("medical record", err)
	}
	return &rec, nil
}
