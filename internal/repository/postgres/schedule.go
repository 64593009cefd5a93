package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const scheduleColumns = `id, doctor_id, lab_technician_id, work_date, start_time, end_time, room_id, status, reserved_from, created_at, updated_at`

func (r *scheduleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	var s model.Schedule
	if err := r.get(ctx, &s, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id); err != nil {
		return nil, lookupErr("schedule", err)
	}
	return &s, nil
}

func (r *scheduleRepository) ListForStaff(ctx context.Context, staffID uuid.UUID, kind model.StaffKind) ([]*model.Schedule, error) {
	var column string
	switch kind {
	case model.StaffDoctor:
		column = "doctor_id"
	case model.StaffLabTechnician:
		column = "lab_technician_id"
	default:
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown staff kind %q", kind), nil)
	}

	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE ` + column + ` = $1
		ORDER BY work_date, start_time
	`
	var schedules []*model.Schedule
	if err := r.selectAll(ctx, &schedules, query, staffID); err != nil {
		return nil, apperrors.Storage(err)
	}
	return schedules, nil
}

func (r *scheduleRepository) Reserve(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.compareAndSet(ctx, `
		UPDATE schedules
		SET reserved_from = status, status = 'booked', updated_at = NOW()
		WHERE id = $1 AND status IN ('available', 'active')
	`, id)
}

func (r *scheduleRepository) Unreserve(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.compareAndSet(ctx, `
		UPDATE schedules
		SET status = COALESCE(reserved_from, 'available'), reserved_from = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'booked'
	`, id)
}
