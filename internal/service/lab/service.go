package lab

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/service/notification"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
)

// DutyChecker rejects staff who are not on a shift right now.
type DutyChecker interface {
	Require(ctx context.Context, staffID uuid.UUID, kind model.StaffKind) error
}

// ObserverFactory builds per-user bus subscribers for one event scope.
type ObserverFactory interface {
	Observers(scope notification.Scope, userIDs ...uuid.UUID) []event.Subscriber
}

type Service struct {
	tx           repository.Transactor
	lab          repository.LabRepository
	appointments repository.AppointmentRepository
	staff        repository.StaffRepository

	duty      DutyChecker
	bus       *event.Bus
	observers ObserverFactory
	logger    *logger.Logger
}

func NewService(
	repos *repository.Repositories,
	duty DutyChecker,
	bus *event.Bus,
	observers ObserverFactory,
	log *logger.Logger,
) *Service {
	return &Service{
		tx:           repos.Tx,
		lab:          repos.Lab,
		appointments: repos.Appointments,
		staff:        repos.Staff,
		duty:         duty,
		bus:          bus,
		observers:    observers,
		logger:       log,
	}
}

func (s *Service) GetTestRequest(ctx context.Context, id uuid.UUID) (*model.TestRequest, error) {
	return s.lab.GetRequest(ctx, id)
}

// CreateTestRequest orders a lab test for an appointment. The assigned
// technician, if any, and the patient are notified.
func (s *Service) CreateTestRequest(ctx context.Context, in model.CreateTestRequestRequest) (*model.TestRequest, error) {
	if strings.TrimSpace(in.TestType) == "" {
		return nil, apperrors.BadRequest("test type is required", nil)
	}
	appt, err := s.appointments.Get(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status == model.AppointmentStatusCancelled {
		return nil, apperrors.Conflict("appointment is cancelled")
	}
	if _, err := s.staff.GetDoctor(ctx, in.DoctorID); err != nil {
		return nil, err
	}

	recipients := []uuid.UUID{appt.PatientUserID}
	if in.LabTechnicianID != nil {
		tech, err := s.staff.GetLabTechnician(ctx, *in.LabTechnicianID)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, tech.UserID)
	}

	req := &model.TestRequest{
		AppointmentID:   appt.ID,
		DoctorID:        in.DoctorID,
		LabTechnicianID: in.LabTechnicianID,
		TestType:        in.TestType,
		Notes:           in.Notes,
		Status:          model.TestRequestPending,
	}
	if err := s.lab.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.publish(context.WithoutCancel(ctx), event.Event{
		Type:          event.TypeTestRequest,
		AppointmentID: appt.ID,
		TestRequestID: &req.ID,
		TestType:      req.TestType,
	}, recipients...)

	s.logger.Info("test request created",
		"test_request_id", req.ID.String(),
		"appointment_id", appt.ID.String(),
		"test_type", req.TestType,
	)
	return req, nil
}

// EnterTestResult stores the result of a pending request. The technician
// must be on duty now; a request can be completed only once.
func (s *Service) EnterTestResult(ctx context.Context, technicianID, requestID uuid.UUID, in model.EnterTestResultRequest) (*model.TestResult, error) {
	if strings.TrimSpace(in.Result) == "" {
		return nil, apperrors.BadRequest("result is required", nil)
	}
	if _, err := s.staff.GetLabTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	if err := s.duty.Require(ctx, technicianID, model.StaffLabTechnician); err != nil {
		return nil, err
	}

	req, err := s.lab.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case model.TestRequestCompleted:
		return nil, apperrors.AlreadyCompleted("test request")
	case model.TestRequestCancelled:
		return nil, apperrors.Conflict("test request is cancelled")
	}
	if req.LabTechnicianID != nil && *req.LabTechnicianID != technicianID {
		return nil, apperrors.Forbidden("test request is assigned to another technician")
	}

	result := &model.TestResult{
		TestRequestID:   req.ID,
		LabTechnicianID: technicianID,
		Result:          in.Result,
		Notes:           in.Notes,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		won, err := s.lab.CompleteRequest(ctx, req.ID, technicianID)
		if err != nil {
			return err
		}
		if !won {
			return apperrors.AlreadyCompleted("test request")
		}
		return s.lab.CreateResult(ctx, result)
	})
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	s.publish(bg, event.Event{
		Type:          event.TypeTestResult,
		AppointmentID: req.AppointmentID,
		TestRequestID: &req.ID,
		TestType:      req.TestType,
		Result:        in.Result,
	}, s.resultRecipients(bg, req)...)

	s.logger.Info("test result entered",
		"test_request_id", req.ID.String(),
		"test_result_id", result.ID.String(),
		"lab_technician_id", technicianID.String(),
	)
	return result, nil
}

// publish attaches scoped observers for the recipients, delivers evt and
// detaches them again. Long-lived subscribers see evt as well.
func (s *Service) publish(ctx context.Context, evt event.Event, recipients ...uuid.UUID) {
	detach := s.bus.Attach(evt.Type, s.observers.Observers(notification.ScopeOf(evt), recipients...)...)
	defer detach()
	s.bus.Publish(ctx, evt)
}

// resultRecipients are the patient and the ordering doctor. Lookups that
// fail are logged and skipped.
func (s *Service) resultRecipients(ctx context.Context, req *model.TestRequest) []uuid.UUID {
	var users []uuid.UUID
	if appt, err := s.appointments.Get(ctx, req.AppointmentID); err != nil {
		s.logger.Warn(err, "failed to resolve patient for test result", "test_request_id", req.ID.String())
	} else {
		users = append(users, appt.PatientUserID)
	}
	if doctor, err := s.staff.GetDoctor(ctx, req.DoctorID); err != nil {
		s.logger.Warn(err, "failed to resolve doctor for test result", "test_request_id", req.ID.String())
	} else {
		users = append(users, doctor.UserID)
	}
	return users
}
