package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
)

// All repository interfaces in one file
type (
	// Transactor runs fn inside one store transaction. Repositories called
	// with the ctx handed to fn join that transaction; nested calls reuse it.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// GetForUpdate locks the row for the surrounding transaction.
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		UpdateFlowStatus(ctx context.Context, id uuid.UUID, status model.FlowStatus) error
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelReason *string) error
		// BindRoom sets room_id only while it is still NULL.
		BindRoom(ctx context.Context, id, roomID uuid.UUID) (bool, error)
		// UnbindRoom clears room_id only while it still equals roomID.
		UnbindRoom(ctx context.Context, id, roomID uuid.UUID) (bool, error)
		BindSchedule(ctx context.Context, id, scheduleID uuid.UUID) (bool, error)
		UnbindSchedule(ctx context.Context, id, scheduleID uuid.UUID) (bool, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	RoomRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Room, error)
		// ListAvailable returns rooms of roomType in status available. A nil
		// specialtyID matches every room of the type.
		ListAvailable(ctx context.Context, roomType model.RoomType, specialtyID *uuid.UUID) ([]*model.Room, error)
		// Claim flips available -> occupied; false means someone else won.
		Claim(ctx context.Context, id uuid.UUID) (bool, error)
		// Free flips occupied -> available.
		Free(ctx context.Context, id uuid.UUID) (bool, error)
	}

	ScheduleRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
		ListForStaff(ctx context.Context, staffID uuid.UUID, kind model.StaffKind) ([]*model.Schedule, error)
		// Reserve flips an on-duty shift to booked.
		Reserve(ctx context.Context, id uuid.UUID) (bool, error)
		// Unreserve flips booked back to available.
		Unreserve(ctx context.Context, id uuid.UUID) (bool, error)
	}

	StaffRepository interface {
		GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetLabTechnician(ctx context.Context, id uuid.UUID) (*model.LabTechnician, error)
	}

	MedicalRecordRepository interface {
		// UpsertForAppointment creates or updates the single record keyed by
		// record.AppointmentID and returns its id.
		UpsertForAppointment(ctx context.Context, record *model.MedicalRecord) (uuid.UUID, error)
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.MedicalRecord, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error)
		// GetPendingWithLock returns due pending/retrying rows, skipping rows
		// locked by another dispatcher.
		GetPendingWithLock(ctx context.Context, limit int, now time.Time) ([]*model.Notification, error)
		MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, status model.NotificationStatus, retryCount int, lastError string, nextRetryAt *time.Time) error
	}

	LabRepository interface {
		CreateRequest(ctx context.Context, req *model.TestRequest) error
		GetRequest(ctx context.Context, id uuid.UUID) (*model.TestRequest, error)
		// CompleteRequest flips a not-yet-completed request to completed and
		// records the technician who performed it.
		CompleteRequest(ctx context.Context, id, technicianID uuid.UUID) (bool, error)
		CreateResult(ctx context.Context, result *model.TestResult) error
	}
)
