package shift

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
)

// Reserver books a doctor's shift for one appointment. It is the only code
// path that flips schedule status.
type Reserver struct {
	tx           repository.Transactor
	appointments repository.AppointmentRepository
	schedules    repository.ScheduleRepository
	availability *Availability
	logger       *logger.Logger
}

func NewReserver(repos *repository.Repositories, availability *Availability, log *logger.Logger) *Reserver {
	return &Reserver{
		tx:           repos.Tx,
		appointments: repos.Appointments,
		schedules:    repos.Schedules,
		availability: availability,
		logger:       log,
	}
}

// Reserve marks the schedule booked and binds it to the appointment.
// Reserving the schedule the appointment already holds is a no-op.
func (r *Reserver) Reserve(ctx context.Context, appointmentID, scheduleID uuid.UUID) (*model.Schedule, error) {
	var reserved *model.Schedule
	var changed bool
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		appt, err := r.appointments.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.ScheduleID != nil {
			if *appt.ScheduleID != scheduleID {
				return apperrors.Conflict("appointment already holds a different schedule")
			}
			reserved, err = r.schedules.Get(ctx, scheduleID)
			return err
		}
		switch {
		case appt.Status == model.AppointmentStatusCancelled:
			return apperrors.Conflict("appointment is cancelled")
		case appt.Finished():
			return apperrors.AlreadyCompleted("appointment")
		}

		sched, err := r.schedules.Get(ctx, scheduleID)
		if err != nil {
			return err
		}
		if sched.DoctorID == nil {
			return apperrors.BadRequest("only doctor schedules can be reserved for appointments", nil)
		}
		if appt.DoctorID != nil && *appt.DoctorID != *sched.DoctorID {
			return apperrors.Conflict("schedule belongs to another doctor")
		}

		won, err := r.schedules.Reserve(ctx, scheduleID)
		if err != nil {
			return err
		}
		if !won {
			return apperrors.Conflict("schedule is not available")
		}
		bound, err := r.appointments.BindSchedule(ctx, appt.ID, scheduleID)
		if err != nil {
			return err
		}
		if !bound {
			return apperrors.Conflict("appointment already holds a schedule")
		}

		sched.Status = model.ScheduleBooked
		reserved = sched
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		owner, kind := reserved.Owner()
		r.availability.Invalidate(owner, kind)
		r.logger.Info("schedule reserved",
			"appointment_id", appointmentID.String(),
			"schedule_id", scheduleID.String(),
		)
	}
	return reserved, nil
}

// Release returns the appointment's schedule to available. It reports false
// when the appointment holds no schedule.
func (r *Reserver) Release(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var sched *model.Schedule
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		appt, err := r.appointments.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.ScheduleID == nil {
			return nil
		}
		s, err := r.schedules.Get(ctx, *appt.ScheduleID)
		if err != nil {
			return err
		}

		freed, err := r.schedules.Unreserve(ctx, s.ID)
		if err != nil {
			return err
		}
		if !freed {
			r.logger.Warn(nil, "released schedule was not booked",
				"schedule_id", s.ID.String(),
				"appointment_id", appointmentID.String(),
			)
		}
		unbound, err := r.appointments.UnbindSchedule(ctx, appt.ID, s.ID)
		if err != nil {
			return err
		}
		if !unbound {
			return apperrors.Conflict("appointment schedule changed during release")
		}
		sched = s
		return nil
	})
	if err != nil {
		return false, err
	}
	if sched == nil {
		return false, nil
	}

	owner, kind := sched.Owner()
	r.availability.Invalidate(owner, kind)
	return true, nil
}
