package room

import (
	"context"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

const defaultClaimAttempts = 3

// Assignment is the room an appointment holds.
type Assignment struct {
	RoomID          uuid.UUID `json:"room_id"`
	RoomNumber      string    `json:"room_number"`
	AlreadyAssigned bool      `json:"already_assigned"`
}

// Allocator is the only code path that flips room status or an
// appointment's room reference.
type Allocator struct {
	tx           repository.Transactor
	appointments repository.AppointmentRepository
	rooms        repository.RoomRepository
	staff        repository.StaffRepository

	roomType      model.RoomType
	claimAttempts int
	pick          func(n int) int

	logger  *logger.Logger
	metrics *metrics.Metrics
}

type Option func(*Allocator)

// WithRoomType sets the room type assignments draw from.
func WithRoomType(t model.RoomType) Option {
	return func(a *Allocator) { a.roomType = t }
}

// WithClaimAttempts bounds how often a lost claim is retried.
func WithClaimAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.claimAttempts = n
		}
	}
}

// WithPicker replaces the uniform random choice among candidates.
func WithPicker(pick func(n int) int) Option {
	return func(a *Allocator) { a.pick = pick }
}

func NewAllocator(repos *repository.Repositories, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Allocator {
	a := &Allocator{
		tx:            repos.Tx,
		appointments:  repos.Appointments,
		rooms:         repos.Rooms,
		staff:         repos.Staff,
		roomType:      model.RoomTypeExamination,
		claimAttempts: defaultClaimAttempts,
		pick:          rand.IntN,
		logger:        log,
		metrics:       m,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assign binds an available room to the appointment. An appointment that
// already holds a room gets that room back unchanged.
func (a *Allocator) Assign(ctx context.Context, appointmentID uuid.UUID) (*Assignment, error) {
	var out *Assignment
	err := a.tx.WithinTx(ctx, func(ctx context.Context) error {
		appt, err := a.appointments.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}

		if appt.RoomID != nil {
			room, err := a.rooms.Get(ctx, *appt.RoomID)
			if err != nil {
				return err
			}
			out = &Assignment{RoomID: room.ID, RoomNumber: room.RoomNumber, AlreadyAssigned: true}
			return nil
		}
		switch {
		case appt.Status == model.AppointmentStatusCancelled:
			return apperrors.Conflict("appointment is cancelled")
		case appt.Finished():
			return apperrors.AlreadyCompleted("appointment")
		}

		specialty, err := a.specialtyFor(ctx, appt)
		if err != nil {
			return err
		}

		for attempt := 1; attempt <= a.claimAttempts; attempt++ {
			candidates, err := a.rooms.ListAvailable(ctx, a.roomType, specialty)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				a.observeClaim("none")
				return apperrors.NoRoomAvailable(string(a.roomType))
			}

			room := candidates[a.pick(len(candidates))]
			won, err := a.rooms.Claim(ctx, room.ID)
			if err != nil {
				return err
			}
			if !won {
				a.observeClaim("lost")
				a.logger.Debug("room claimed concurrently, retrying",
					"room_id", room.ID.String(),
					"appointment_id", appointmentID.String(),
					"attempt", attempt,
				)
				continue
			}

			bound, err := a.appointments.BindRoom(ctx, appt.ID, room.ID)
			if err != nil {
				return err
			}
			if !bound {
				return apperrors.Conflict("appointment already holds a room")
			}

			a.observeClaim("won")
			out = &Assignment{RoomID: room.ID, RoomNumber: room.RoomNumber}
			return nil
		}

		a.observeClaim("exhausted")
		return apperrors.NoRoomAvailable(string(a.roomType))
	})
	if err != nil {
		return nil, err
	}

	if !out.AlreadyAssigned {
		a.logger.Info("room assigned",
			"appointment_id", appointmentID.String(),
			"room_id", out.RoomID.String(),
			"room_number", out.RoomNumber,
		)
	}
	return out, nil
}

// Release frees the appointment's room. It reports false, changing nothing,
// when the appointment holds no room.
func (a *Allocator) Release(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var roomID uuid.UUID
	err := a.tx.WithinTx(ctx, func(ctx context.Context) error {
		appt, err := a.appointments.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.RoomID == nil {
			return nil
		}
		roomID = *appt.RoomID

		freed, err := a.rooms.Free(ctx, roomID)
		if err != nil {
			return err
		}
		if !freed {
			a.logger.Warn(nil, "released room was not occupied",
				"room_id", roomID.String(),
				"appointment_id", appointmentID.String(),
			)
		}

		unbound, err := a.appointments.UnbindRoom(ctx, appt.ID, roomID)
		if err != nil {
			return err
		}
		if !unbound {
			return apperrors.Conflict("appointment room changed during release")
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if roomID == uuid.Nil {
		return false, nil
	}

	if a.metrics != nil {
		a.metrics.RoomReleases.Inc()
	}
	a.logger.Info("room released",
		"appointment_id", appointmentID.String(),
		"room_id", roomID.String(),
	)
	return true, nil
}

// specialtyFor resolves the doctor's specialty; nil means any room fits.
func (a *Allocator) specialtyFor(ctx context.Context, appt *model.Appointment) (*uuid.UUID, error) {
	if appt.DoctorID == nil {
		return nil, nil
	}
	doctor, err := a.staff.GetDoctor(ctx, *appt.DoctorID)
	if err != nil {
		return nil, err
	}
	return doctor.SpecialtyID, nil
}

func (a *Allocator) observeClaim(result string) {
	if a.metrics != nil {
		a.metrics.RoomClaims.WithLabelValues(result).Inc()
	}
}
