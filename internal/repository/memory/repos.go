package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	a.PatientUserID = r.s.patients[a.PatientID]
	return &a, nil
}

func (r appointmentRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.lockRow(ctx, id)
	return r.Get(ctx, id)
}

// update applies fn to the stored appointment when cond holds.
func (r appointmentRepo) update(ctx context.Context, id uuid.UUID, cond func(*model.Appointment) bool, fn func(*model.Appointment)) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return false, apperrors.NotFound("appointment", nil)
	}
	if cond != nil && !cond(&a) {
		return false, nil
	}
	fn(&a)
	a.UpdatedAt = r.s.now()
	put(ctx, r.s, r.s.appointments, id, a)
	return true, nil
}

func (r appointmentRepo) UpdateFlowStatus(ctx context.Context, id uuid.UUID, status model.FlowStatus) error {
	_, err := r.update(ctx, id, nil, func(a *model.Appointment) { a.FlowStatus = status })
	return err
}

func (r appointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelReason *string) error {
	_, err := r.update(ctx, id, nil, func(a *model.Appointment) {
		a.Status = status
		if cancelReason != nil {
			a.CancelReason = ptr(*cancelReason)
		}
	})
	return err
}

func (r appointmentRepo) BindRoom(ctx context.Context, id, roomID uuid.UUID) (bool, error) {
	return r.update(ctx, id,
		func(a *model.Appointment) bool { return a.RoomID == nil },
		func(a *model.Appointment) { a.RoomID = ptr(roomID) })
}

func (r appointmentRepo) UnbindRoom(ctx context.Context, id, roomID uuid.UUID) (bool, error) {
	return r.update(ctx, id,
		func(a *model.Appointment) bool { return a.RoomID != nil && *a.RoomID == roomID },
		func(a *model.Appointment) { a.RoomID = nil })
}

func (r appointmentRepo) BindSchedule(ctx context.Context, id, scheduleID uuid.UUID) (bool, error) {
	return r.update(ctx, id,
		func(a *model.Appointment) bool { return a.ScheduleID == nil },
		func(a *model.Appointment) { a.ScheduleID = ptr(scheduleID) })
}

func (r appointmentRepo) UnbindSchedule(ctx context.Context, id, scheduleID uuid.UUID) (bool, error) {
	return r.update(ctx, id,
		func(a *model.Appointment) bool { return a.ScheduleID != nil && *a.ScheduleID == scheduleID },
		func(a *model.Appointment) { a.ScheduleID = nil })
}

func (r appointmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appointments[id]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	r.s.journal(ctx, snapshot(r.s.appointments, id))
	delete(r.s.appointments, id)
	return nil
}

type roomRepo struct{ s *Store }

func (r roomRepo) Get(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, apperrors.NotFound("room", nil)
	}
	return &room, nil
}

func (r roomRepo) ListAvailable(ctx context.Context, roomType model.RoomType, specialtyID *uuid.UUID) ([]*model.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Room
	for _, room := range r.s.rooms {
		if room.Status == model.RoomAvailable && room.Matches(roomType, specialtyID) {
			room := room
			out = append(out, &room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out, nil
}

func (r roomRepo) flip(ctx context.Context, id uuid.UUID, from, to model.RoomStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[id]
	if !ok || room.Status != from {
		return false, nil
	}
	room.Status = to
	room.UpdatedAt = r.s.now()
	put(ctx, r.s, r.s.rooms, id, room)
	return true, nil
}

func (r roomRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.flip(ctx, id, model.RoomAvailable, model.RoomOccupied)
}

func (r roomRepo) Free(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.flip(ctx, id, model.RoomOccupied, model.RoomAvailable)
}

type scheduleRepo struct{ s *Store }

func (r scheduleRepo) Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sc, ok := r.s.schedules[id]
	if !ok {
		return nil, apperrors.NotFound("schedule", nil)
	}
	return &sc, nil
}

func (r scheduleRepo) ListForStaff(ctx context.Context, staffID uuid.UUID, kind model.StaffKind) ([]*model.Schedule, error) {
	if !kind.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown staff kind %q", kind), nil)
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Schedule
	for _, sc := range r.s.schedules {
		if owner, k := sc.Owner(); owner == staffID && k == kind {
			sc := sc
			out = append(out, &sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WorkDate != out[j].WorkDate {
			return out[i].WorkDate < out[j].WorkDate
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r scheduleRepo) Reserve(ctx context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sc, ok := r.s.schedules[id]
	if !ok || !sc.Status.OnDuty() {
		return false, nil
	}
	sc.ReservedFrom = ptr(sc.Status)
	sc.Status = model.ScheduleBooked
	sc.UpdatedAt = r.s.now()
	put(ctx, r.s, r.s.schedules, id, sc)
	return true, nil
}

func (r scheduleRepo) Unreserve(ctx context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sc, ok := r.s.schedules[id]
	if !ok || sc.Status != model.ScheduleBooked {
		return false, nil
	}
	sc.Status = model.ScheduleAvailable
	if sc.ReservedFrom != nil {
		sc.Status = *sc.ReservedFrom
	}
	sc.ReservedFrom = nil
	sc.UpdatedAt = r.s.now()
	put(ctx, r.s, r.s.schedules, id, sc)
	return true, nil
}

type staffRepo struct{ s *Store }

func (r staffRepo) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return &d, nil
}

func (r staffRepo) GetLabTechnician(ctx context.Context, id uuid.UUID) (*model.LabTechnician, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.technicians[id]
	if !ok {
		return nil, apperrors.NotFound("lab technician", nil)
	}
	return &t, nil
}

type medicalRecordRepo struct{ s *Store }

func (r medicalRecordRepo) UpsertForAppointment(ctx context.Context, record *model.MedicalRecord) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	rec := *record
	if existing, ok := r.s.records[record.AppointmentID]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	put(ctx, r.s, r.s.records, rec.AppointmentID, rec)
	*record = rec
	return rec.ID, nil
}

func (r medicalRecordRepo) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.MedicalRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.records[appointmentID]
	if !ok {
		return nil, apperrors.NotFound("medical record", nil)
	}
	return &rec, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = model.NotificationStatusPending
	}
	n.CreatedAt = r.s.now()
	n.UpdatedAt = n.CreatedAt

	id := n.ID
	put(ctx, r.s, r.s.notifications, id, *n)
	r.s.notifOrder = append(r.s.notifOrder, id)
	r.s.journal(ctx, func() {
		for i, v := range r.s.notifOrder {
			if v == id {
				r.s.notifOrder = append(r.s.notifOrder[:i], r.s.notifOrder[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r notificationRepo) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Notification
	for i := len(r.s.notifOrder) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		n := r.s.notifications[r.s.notifOrder[i]]
		if n.UserID == userID {
			out = append(out, &n)
		}
	}
	return out, nil
}

func (r notificationRepo) GetPendingWithLock(ctx context.Context, limit int, now time.Time) ([]*model.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Notification
	for _, id := range r.s.notifOrder {
		if limit > 0 && len(out) >= limit {
			break
		}
		n := r.s.notifications[id]
		if n.Status != model.NotificationStatusPending && n.Status != model.NotificationStatusRetrying {
			continue
		}
		if n.NextRetryAt != nil && n.NextRetryAt.After(now) {
			continue
		}
		out = append(out, &n)
	}
	return out, nil
}

func (r notificationRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return apperrors.NotFound("notification", nil)
	}
	n.Status = model.NotificationStatusSent
	n.SentAt = ptr(sentAt)
	n.LastError = nil
	n.NextRetryAt = nil
	n.UpdatedAt = sentAt
	put(ctx, r.s, r.s.notifications, id, n)
	return nil
}

func (r notificationRepo) MarkFailed(ctx context.Context, id uuid.UUID, status model.NotificationStatus, retryCount int, lastError string, nextRetryAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return apperrors.NotFound("notification", nil)
	}
	n.Status = status
	n.RetryCount = retryCount
	n.LastError = ptr(lastError)
	if nextRetryAt != nil {
		n.NextRetryAt = ptr(*nextRetryAt)
	} else {
		n.NextRetryAt = nil
	}
	n.UpdatedAt = r.s.now()
	put(ctx, r.s, r.s.notifications, id, n)
	return nil
}

type labRepo struct{ s *Store }

func (r labRepo) CreateRequest(ctx context.Context, req *model.TestRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = model.TestRequestPending
	}
	req.CreatedAt = r.s.now()
	req.UpdatedAt = req.CreatedAt
	put(ctx, r.s, r.s.testRequests, req.ID, *req)
	return nil
}

func (r labRepo) GetRequest(ctx context.Context, id uuid.UUID) (*model.TestRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	req, ok := r.s.testRequests[id]
	if !ok {
		return nil, apperrors.NotFound("test request", nil)
	}
	return &req, nil
}

func (r labRepo) CompleteRequest(ctx context.Context, id, technicianID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.testRequests[id]
	if !ok {
		return false, nil
	}
	if req.Status != model.TestRequestPending && req.Status != model.TestRequestInProgress {
		return false, nil
	}
	req.Status = model.TestRequestCompleted
	req.LabTechnicianID = ptr(technicianID)
	req.UpdatedAt = r.s.now()
	put(ctx, r.s, r.s.testRequests, id, req)
	return true, nil
}

func (r labRepo) CreateResult(ctx context.Context, result *model.TestResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	result.CreatedAt = r.s.now()
	result.UpdatedAt = result.CreatedAt
	put(ctx, r.s, r.s.testResults, result.ID, *result)
	return nil
}
