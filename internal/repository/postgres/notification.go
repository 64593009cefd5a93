package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const notificationColumns = `id, user_id, kind, title, content, status, is_read,
	retry_count, last_error, next_retry_at, sent_at, created_at, updated_at`

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}
	query := `
		INSERT INTO notifications (
			id, user_id, kind, title, content, status, is_read,
			retry_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = model.NotificationStatusPending
	}
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt

	_, err := r.exec(ctx, query,
		n.ID,
		n.UserID,
		n.Kind,
		n.Title,
		n.Content,
		n.Status,
		n.IsRead,
		n.RetryCount,
		n.CreatedAt,
		n.UpdatedAt,
	)
	return err
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	var out []*model.Notification
	if err := r.selectAll(ctx, &out, query, userID, limit); err != nil {
		return nil, apperrors.Storage(err)
	}
	return out, nil
}

func (r *notificationRepository) GetPendingWithLock(ctx context.Context, limit int, now time.Time) ([]*model.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE status IN ('pending', 'retrying')
		AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	var out []*model.Notification
	if err := r.selectAll(ctx, &out, query, now, limit); err != nil {
		return nil, apperrors.Storage(err)
	}
	return out, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'sent', sent_at = $2, last_error = NULL, next_retry_at = NULL, updated_at = $2
		WHERE id = $1
	`
	n, err := r.exec(ctx, query, id, sentAt)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("notification", nil)
	}
	return nil
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, status model.NotificationStatus, retryCount int, lastError string, nextRetryAt *time.Time) error {
	query := `
		UPDATE notifications
		SET status = $2, retry_count = $3, last_error = $4, next_retry_at = $5, updated_at = NOW()
		WHERE id = $1
	`
	n, err := r.exec(ctx, query, id, status, retryCount, lastError, nextRetryAt)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("notification", nil)
	}
	return nil
}
