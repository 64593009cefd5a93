package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
)

// Releaser frees a resource bound to an appointment.
type Releaser interface {
	Release(ctx context.Context, appointmentID uuid.UUID) (bool, error)
}

// Notifier writes notifications for a set of users.
type Notifier interface {
	NotifyUsers(ctx context.Context, evt event.Event, userIDs ...uuid.UUID) int
}

// CompletionResult is returned by CompleteExamination.
type CompletionResult struct {
	AppointmentID uuid.UUID        `json:"appointment_id"`
	RecordID      uuid.UUID        `json:"record_id"`
	FlowStatus    model.FlowStatus `json:"patient_status"`
	RoomReleased  bool             `json:"room_released"`
}

// Service owns the patient-flow state machine of an appointment and the
// side effects of moving through it.
type Service struct {
	tx           repository.Transactor
	appointments repository.AppointmentRepository
	records      repository.MedicalRecordRepository
	staff        repository.StaffRepository

	rooms     Releaser
	schedules Releaser
	bus       *event.Bus
	notifier  Notifier
	logger    *logger.Logger
}

func NewService(
	repos *repository.Repositories,
	rooms Releaser,
	schedules Releaser,
	bus *event.Bus,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	return &Service{
		tx:           repos.Tx,
		appointments: repos.Appointments,
		records:      repos.MedicalRecords,
		staff:        repos.Staff,
		rooms:        rooms,
		schedules:    schedules,
		bus:          bus,
		notifier:     notifier,
		logger:       log,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.appointments.Get(ctx, id)
}

// SetStatus moves the appointment to next. Without force the move must be
// in the transition table. Only the status is persisted.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, next model.FlowStatus, force bool) (*model.Appointment, error) {
	if !next.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown patient status %q", next), nil)
	}

	var appt *model.Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return s.setStatus(ctx, appt, next, force)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("patient status changed",
		"appointment_id", id.String(),
		"status", string(next),
		"force", force,
	)
	return appt, nil
}

func (s *Service) setStatus(ctx context.Context, appt *model.Appointment, next model.FlowStatus, force bool) error {
	if !force && !appt.FlowStatus.CanTransitionTo(next) {
		return apperrors.InvalidTransition(string(appt.FlowStatus), string(next))
	}
	if err := s.appointments.UpdateFlowStatus(ctx, appt.ID, next); err != nil {
		return err
	}
	appt.FlowStatus = next
	return nil
}

// CompleteExamination records the clinical outcome and closes the
// encounter. The record upsert and status change commit together; releasing
// the room and notifying patient and doctor are best effort afterwards.
func (s *Service) CompleteExamination(ctx context.Context, id uuid.UUID, in model.ExaminationInput) (*CompletionResult, error) {
	if strings.TrimSpace(in.Diagnosis) == "" {
		return nil, apperrors.BadRequest("diagnosis is required", nil)
	}

	var (
		appt     *model.Appointment
		recordID uuid.UUID
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if appt.FlowStatus == model.FlowExamined {
			return apperrors.AlreadyCompleted("appointment")
		}

		recordID, err = s.records.UpsertForAppointment(ctx, &model.MedicalRecord{
			AppointmentID:   appt.ID,
			PatientID:       appt.PatientID,
			DoctorID:        appt.DoctorID,
			Diagnosis:       in.Diagnosis,
			Notes:           in.Notes,
			Recommendations: in.Recommendations,
			FollowupDate:    in.FollowupDate,
		})
		if err != nil {
			return err
		}

		if err := s.setStatus(ctx, appt, model.FlowExamined, true); err != nil {
			return err
		}
		if err := s.appointments.UpdateStatus(ctx, appt.ID, model.AppointmentStatusCompleted, nil); err != nil {
			return err
		}
		appt.Status = model.AppointmentStatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{
		AppointmentID: appt.ID,
		RecordID:      recordID,
		FlowStatus:    appt.FlowStatus,
	}

	// the examination is committed; nothing below may fail the call
	bg := context.WithoutCancel(ctx)

	released, err := s.rooms.Release(bg, appt.ID)
	if err != nil {
		s.logger.Error(err, "failed to release room after examination", "appointment_id", appt.ID.String())
	}
	result.RoomReleased = released

	evt := event.Event{
		Type:           event.TypeExamination,
		AppointmentID:  appt.ID,
		Diagnosis:      in.Diagnosis,
		AdditionalInfo: in.AdditionalInfo,
	}
	s.bus.Publish(bg, evt)
	written := s.notifier.NotifyUsers(bg, evt, s.recipients(bg, appt)...)

	s.logger.Info("examination completed",
		"appointment_id", appt.ID.String(),
		"record_id", recordID.String(),
		"notifications", written,
	)
	return result, nil
}

// Cancel sets the administrative status to cancelled and frees the room and
// schedule in the same transaction.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	var appt *model.Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case appt.Status == model.AppointmentStatusCancelled:
			return apperrors.Conflict("appointment already cancelled")
		case appt.Finished():
			return apperrors.AlreadyCompleted("appointment")
		}

		var why *string
		if reason = strings.TrimSpace(reason); reason != "" {
			why = &reason
		}
		if err := s.appointments.UpdateStatus(ctx, appt.ID, model.AppointmentStatusCancelled, why); err != nil {
			return err
		}
		if _, err := s.rooms.Release(ctx, appt.ID); err != nil {
			return err
		}
		if _, err := s.schedules.Release(ctx, appt.ID); err != nil {
			return err
		}
		appt.Status = model.AppointmentStatusCancelled
		appt.CancelReason = why
		appt.RoomID = nil
		appt.ScheduleID = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	evt := event.Event{
		Type:          event.TypeAppointment,
		AppointmentID: appt.ID,
		Status:        string(model.AppointmentStatusCancelled),
		Reason:        reason,
	}
	s.bus.Publish(bg, evt)
	s.notifier.NotifyUsers(bg, evt, s.recipients(bg, appt)...)

	s.logger.Info("appointment cancelled", "appointment_id", appt.ID.String())
	return appt, nil
}

// Delete removes the appointment after freeing anything it holds.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.appointments.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if _, err := s.rooms.Release(ctx, id); err != nil {
			return err
		}
		if _, err := s.schedules.Release(ctx, id); err != nil {
			return err
		}
		return s.appointments.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("appointment deleted", "appointment_id", id.String())
	return nil
}

// recipients resolves patient and doctor user accounts. A doctor that
// cannot be resolved is logged and skipped.
func (s *Service) recipients(ctx context.Context, appt *model.Appointment) []uuid.UUID {
	users := []uuid.UUID{appt.PatientUserID}
	if appt.DoctorID == nil {
		return users
	}
	doctor, err := s.staff.GetDoctor(ctx, *appt.DoctorID)
	if err != nil {
		s.logger.Warn(err, "failed to resolve doctor for notification",
			"appointment_id", appt.ID.String(),
			"doctor_id", appt.DoctorID.String(),
		)
		return users
	}
	return append(users, doctor.UserID)
}
