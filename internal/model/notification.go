package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending  NotificationStatus = "pending"
	NotificationStatusSent     NotificationStatus = "sent"
	NotificationStatusFailed   NotificationStatus = "failed"
	NotificationStatusRetrying NotificationStatus = "retrying"
)

// NotificationKind tags what the notification is about.
type NotificationKind string

const (
	KindExamination  NotificationKind = "examination"
	KindAppointment  NotificationKind = "appointment"
	KindTestResult   NotificationKind = "test_result"
	KindPrescription NotificationKind = "prescription"
	KindTestRequest  NotificationKind = "test_request"
)

type Notification struct {
	Base
	UserID      uuid.UUID          `db:"user_id" json:"user_id"`
	Kind        NotificationKind   `db:"kind" json:"kind"`
	Title       string             `db:"title" json:"title"`
	Content     string             `db:"content" json:"content"`
	Status      NotificationStatus `db:"status" json:"status"`
	IsRead      bool               `db:"is_read" json:"is_read"`
	RetryCount  int                `db:"retry_count" json:"retry_count"`
	LastError   *string            `db:"last_error" json:"last_error,omitempty"`
	NextRetryAt *time.Time         `db:"next_retry_at" json:"next_retry_at,omitempty"`
	SentAt      *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
}

// NotificationMessage is what gets pushed to a user's broker channel.
type NotificationMessage struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
}
