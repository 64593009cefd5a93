package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
)

const (
	defaultRosterTTL = 5 * time.Second
	cleanupInterval  = time.Minute
)

// Availability answers whether a staff member is inside an eligible shift
// right now. Rosters are cached briefly per staff member.
type Availability struct {
	schedules repository.ScheduleRepository
	cache     *gocache.Cache
	now       func() time.Time
	loc       *time.Location
	logger    *logger.Logger
}

type Option func(*Availability)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(a *Availability) { a.now = now }
}

// WithLocation sets the operating timezone shifts are written in.
func WithLocation(loc *time.Location) Option {
	return func(a *Availability) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithRosterTTL sets how long a fetched roster is reused. Zero disables caching.
func WithRosterTTL(ttl time.Duration) Option {
	return func(a *Availability) {
		if ttl <= 0 {
			a.cache = nil
			return
		}
		a.cache = gocache.New(ttl, cleanupInterval)
	}
}

func NewAvailability(schedules repository.ScheduleRepository, log *logger.Logger, opts ...Option) *Availability {
	a := &Availability{
		schedules: schedules,
		cache:     gocache.New(defaultRosterTTL, cleanupInterval),
		now:       time.Now,
		loc:       time.Local,
		logger:    log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsOnDuty reports whether any shift of the staff member covers the current
// date and time of day.
func (a *Availability) IsOnDuty(ctx context.Context, staffID uuid.UUID, kind model.StaffKind) (bool, error) {
	s, err := a.CurrentShift(ctx, staffID, kind)
	if err != nil {
		return false, err
	}
	return s != nil, nil
}

// CurrentShift returns the first covering shift, or nil when off duty.
func (a *Availability) CurrentShift(ctx context.Context, staffID uuid.UUID, kind model.StaffKind) (*model.Schedule, error) {
	if !kind.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown staff kind %q", kind), nil)
	}

	now := a.now().In(a.loc)
	date := now.Format(model.DateLayout)
	clock := now.Format(model.ClockLayout)

	shifts, err := a.roster(ctx, staffID, kind)
	if err != nil {
		return nil, err
	}
	for _, s := range shifts {
		if s.Covers(date, clock) {
			return s, nil
		}
	}
	return nil, nil
}

// Require fails with NotOnDuty unless the staff member is on duty.
func (a *Availability) Require(ctx context.Context, staffID uuid.UUID, kind model.StaffKind) error {
	return a.RequireFor(ctx, staffID, kind, nil)
}

// RequireFor is Require for work on one appointment. The booked shift the
// appointment holds also counts while its window covers now.
func (a *Availability) RequireFor(ctx context.Context, staffID uuid.UUID, kind model.StaffKind, reserved *uuid.UUID) error {
	ok, err := a.IsOnDuty(ctx, staffID, kind)
	if err != nil {
		return err
	}
	if !ok && reserved != nil {
		ok, err = a.coversReserved(ctx, staffID, kind, *reserved)
		if err != nil {
			return err
		}
	}
	if !ok {
		a.logger.Info("staff not on duty", "staff_id", staffID.String(), "staff_kind", string(kind))
		return apperrors.NotOnDuty(string(kind))
	}
	return nil
}

// coversReserved reads the schedule directly so a cached roster taken
// before the reservation cannot hide it.
func (a *Availability) coversReserved(ctx context.Context, staffID uuid.UUID, kind model.StaffKind, scheduleID uuid.UUID) (bool, error) {
	s, err := a.schedules.Get(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	owner, ownerKind := s.Owner()
	if s.Status != model.ScheduleBooked || owner != staffID || ownerKind != kind {
		return false, nil
	}
	now := a.now().In(a.loc)
	return s.Spans(now.Format(model.DateLayout), now.Format(model.ClockLayout)), nil
}

// Invalidate drops the cached roster of one staff member.
func (a *Availability) Invalidate(staffID uuid.UUID, kind model.StaffKind) {
	if a.cache != nil {
		a.cache.Delete(cacheKey(staffID, kind))
	}
}

func (a *Availability) roster(ctx context.Context, staffID uuid.UUID, kind model.StaffKind) ([]*model.Schedule, error) {
	key := cacheKey(staffID, kind)
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			return v.([]*model.Schedule), nil
		}
	}
	shifts, err := a.schedules.ListForStaff(ctx, staffID, kind)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		a.cache.SetDefault(key, shifts)
	}
	return shifts, nil
}

func cacheKey(staffID uuid.UUID, kind model.StaffKind) string {
	return string(kind) + ":" + staffID.String()
}
