package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const appointmentSelect = `
	SELECT a.id, a.patient_id,
		COALESCE(p.user_id, '00000000-0000-0000-0000-000000000000'::uuid) AS patient_user_id,
		a.doctor_id, a.room_id, a.schedule_id,
		a.status, a.patient_status, a.payment_status,
		COALESCE(a.reason, '') AS reason, a.cancel_reason,
		a.created_at, a.updated_at
	FROM appointments a
	LEFT JOIN patients p ON p.id = a.patient_id
	WHERE a.id = $1
`

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var appt model.Appointment
	if err := r.get(ctx, &appt, appointmentSelect, id); err != nil {
		return nil, lookupErr("appointment", err)
	}
	return &appt, nil
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var appt model.Appointment
	if err := r.get(ctx, &appt, appointmentSelect+" FOR UPDATE OF a", id); err != nil {
		return nil, lookupErr("appointment", err)
	}
	return &appt, nil
}

func (r *appointmentRepository) UpdateFlowStatus(ctx context.Context, id uuid.UUID, status model.FlowStatus) error {
	query := `
		UPDATE appointments
		SET patient_status = $2, updated_at = NOW()
		WHERE id = $1
	`
	n, err := r.exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("appointment", nil)
	}
	return nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelReason *string) error {
	query := `
		UPDATE appointments
		SET status = $2, cancel_reason = COALESCE($3, cancel_reason), updated_at = NOW()
		WHERE id = $1
	`
	n, err := r.exec(ctx, query, id, status, cancelReason)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("appointment", nil)
	}
	return nil
}

func (r *appointmentRepository) BindRoom(ctx context.Context, id, roomID uuid.UUID) (bool, error) {
	return r.compareAndSet(ctx, `
		UPDATE appointments
		SET room_id = $2, updated_at = NOW()
		WHERE id = $1 AND room_id IS NULL
	`, id, roomID)
}

func (r *appointmentRepository) UnbindRoom(ctx context.Context, id, roomID uuid.UUID) (bool, error) {
	return r.compareAndSet(ctx, `
		UPDATE appointments
		SET room_id = NULL, updated_at = NOW()
		WHERE id = $1 AND room_id = $2
	`, id, roomID)
}

func (r *appointmentRepository) BindSchedule(ctx context.Context, id, scheduleID uuid.UUID) (bool, error) {
	return r.compareAndSet(ctx, `
		UPDATE appointments
		SET schedule_id = $2, updated_at = NOW()
		WHERE id = $1 AND schedule_id IS NULL
	`, id, scheduleID)
}

func (r *appointmentRepository) UnbindSchedule(ctx context.Context, id, scheduleID uuid.UUID) (bool, error) {
	return r.compareAndSet(ctx, `
		UPDATE appointments
		SET schedule_id = NULL, updated_at = NOW()
		WHERE id = $1 AND schedule_id = $2
	`, id, scheduleID)
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("appointment", nil)
	}
	return nil
}
