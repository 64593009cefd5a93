package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const roomColumns = `id, room_number, capacity, type, status, specialty_id, created_at, updated_at`

func (r *roomRepository) Get(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	var room model.Room
	if err := r.get(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id); err != nil {
		return nil, lookupErr("room", err)
	}
	return &room, nil
}

func (r *roomRepository) ListAvailable(ctx context.Context, roomType model.RoomType, specialtyID *uuid.UUID) ([]*model.Room, error) {
	query := `SELECT ` + roomColumns + `
		FROM rooms
		WHERE type = $1 AND status = 'available'
		AND ($2::uuid IS NULL OR specialty_id = $2)
		ORDER BY room_number
	`
	var rooms []*model.Room
	if err := r.selectAll(ctx, &rooms, query, roomType, specialtyID); err != nil {
		return nil, apperrors.Storage(err)
	}
	return rooms, nil
}

func (r *roomRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.compareAndSet(ctx, `
		UPDATE rooms
		SET status = 'occupied', updated_at = NOW()
		WHERE id = $1 AND status = 'available'
	`, id)
}

func (r *roomRepository) Free(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.compareAndSet(ctx, `
		UPDATE rooms
		SET status = 'available', updated_at = NOW()
		WHERE id = $1 AND status = 'occupied'
	`, id)
}
