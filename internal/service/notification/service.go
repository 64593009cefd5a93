package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

// Service is the notification sink: every notification becomes a pending
// row that the dispatcher worker delivers later.
type Service struct {
	repo    repository.NotificationRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.NotificationRepository, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{repo: repo, logger: log, metrics: m}
}

// Enqueue stores one pending notification for userID and returns its id.
func (s *Service) Enqueue(ctx context.Context, userID uuid.UUID, kind model.NotificationKind, title, content string) (uuid.UUID, error) {
	if userID == uuid.Nil {
		return uuid.Nil, apperrors.BadRequest("notification recipient is required", nil)
	}
	n := &model.Notification{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Content: content,
		Status:  model.NotificationStatusPending,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create notification: %w", err)
	}
	if s.metrics != nil {
		s.metrics.NotificationsCreated.WithLabelValues(string(kind)).Inc()
	}
	return n.ID, nil
}

// NotifyUsers formats evt once and enqueues it for each recipient. Failures
// are logged; the number of rows written is returned.
func (s *Service) NotifyUsers(ctx context.Context, evt event.Event, userIDs ...uuid.UUID) int {
	msg := Format(evt)
	written := 0
	for _, id := range unique(userIDs) {
		if _, err := s.Enqueue(ctx, id, model.NotificationKind(evt.Type), msg.Title, msg.Content); err != nil {
			s.logger.Error(err, "failed to enqueue notification",
				"user_id", id.String(),
				"kind", string(evt.Type),
				"appointment_id", evt.AppointmentID.String(),
			)
			continue
		}
		written++
	}
	return written
}

// Observers builds one bus subscriber per distinct recipient. Each observer
// only reacts to events inside scope, so handles attached around one
// Publish never pick up a concurrent caller's event.
func (s *Service) Observers(scope Scope, userIDs ...uuid.UUID) []event.Subscriber {
	ids := unique(userIDs)
	out := make([]event.Subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, &UserObserver{userID: id, scope: scope, sink: s})
	}
	return out
}

// Scope narrows an observer to events about one appointment and, when set,
// one test request.
type Scope struct {
	AppointmentID uuid.UUID
	TestRequestID *uuid.UUID
}

func ScopeOf(evt event.Event) Scope {
	return Scope{AppointmentID: evt.AppointmentID, TestRequestID: evt.TestRequestID}
}

func (sc Scope) matches(evt event.Event) bool {
	if evt.AppointmentID != sc.AppointmentID {
		return false
	}
	if sc.TestRequestID == nil {
		return true
	}
	return evt.TestRequestID != nil && *evt.TestRequestID == *sc.TestRequestID
}

func (sc Scope) String() string {
	if sc.TestRequestID != nil {
		return sc.AppointmentID.String() + "/" + sc.TestRequestID.String()
	}
	return sc.AppointmentID.String()
}

// UserObserver writes every in-scope event as a notification for one user.
type UserObserver struct {
	userID uuid.UUID
	scope  Scope
	sink   *Service
}

func (o *UserObserver) ID() string {
	return "user:" + o.userID.String() + "@" + o.scope.String()
}

func (o *UserObserver) Notify(ctx context.Context, evt event.Event) error {
	if !o.scope.matches(evt) {
		return nil
	}
	msg := Format(evt)
	_, err := o.sink.Enqueue(ctx, o.userID, model.NotificationKind(evt.Type), msg.Title, msg.Content)
	return err
}

// unique drops nil and repeated ids, keeping first-seen order.
func unique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
