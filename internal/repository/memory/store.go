// Package memory is an in-process store implementing every repository. It
// backs the "memory" database driver and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

type txKey struct{}

type txState struct {
	undo   []func()
	locked map[uuid.UUID]*sync.Mutex
}

// Store keeps each table as a map of values; callers always get copies.
type Store struct {
	mu sync.RWMutex

	patients      map[uuid.UUID]uuid.UUID // patient id -> user id
	appointments  map[uuid.UUID]model.Appointment
	rooms         map[uuid.UUID]model.Room
	schedules     map[uuid.UUID]model.Schedule
	doctors       map[uuid.UUID]model.Doctor
	technicians   map[uuid.UUID]model.LabTechnician
	records       map[uuid.UUID]model.MedicalRecord // keyed by appointment id
	notifications map[uuid.UUID]model.Notification
	notifOrder    []uuid.UUID
	testRequests  map[uuid.UUID]model.TestRequest
	testResults   map[uuid.UUID]model.TestResult

	lockMu   sync.Mutex
	rowLocks map[uuid.UUID]*sync.Mutex

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		patients:      make(map[uuid.UUID]uuid.UUID),
		appointments:  make(map[uuid.UUID]model.Appointment),
		rooms:         make(map[uuid.UUID]model.Room),
		schedules:     make(map[uuid.UUID]model.Schedule),
		doctors:       make(map[uuid.UUID]model.Doctor),
		technicians:   make(map[uuid.UUID]model.LabTechnician),
		records:       make(map[uuid.UUID]model.MedicalRecord),
		notifications: make(map[uuid.UUID]model.Notification),
		testRequests:  make(map[uuid.UUID]model.TestRequest),
		testResults:   make(map[uuid.UUID]model.TestResult),
		rowLocks:      make(map[uuid.UUID]*sync.Mutex),
		now:           time.Now,
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Tx:             s,
		Appointments:   appointmentRepo{s},
		Rooms:          roomRepo{s},
		Schedules:      scheduleRepo{s},
		Staff:          staffRepo{s},
		MedicalRecords: medicalRecordRepo{s},
		Notifications:  notificationRepo{s},
		Lab:            labRepo{s},
	}
}

// WithinTx runs fn with an undo journal. If fn fails or panics every write
// it made is reverted in reverse order. Row locks taken by GetForUpdate are
// held until fn returns.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	tx := &txState{locked: make(map[uuid.UUID]*sync.Mutex)}
	defer func() {
		p := recover()
		if err != nil || p != nil {
			s.rollback(tx)
		}
		for _, l := range tx.locked {
			l.Unlock()
		}
		if p != nil {
			panic(p)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}

func (s *Store) rollback(tx *txState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

// journal records an undo step; callers hold s.mu.
func (s *Store) journal(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok {
		tx.undo = append(tx.undo, undo)
	}
}

// lockRow blocks until the caller's transaction owns id. Outside a
// transaction it is a no-op.
func (s *Store) lockRow(ctx context.Context, id uuid.UUID) {
	tx, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return
	}
	if _, held := tx.locked[id]; held {
		return
	}
	s.lockMu.Lock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	s.lockMu.Unlock()

	l.Lock()
	tx.locked[id] = l
}

// snapshot returns an undo func restoring m[k] to its current state.
func snapshot[K comparable, V any](m map[K]V, k K) func() {
	prev, existed := m[k]
	return func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	}
}

// put stores v under k and journals the previous value; callers hold s.mu.
func put[K comparable, V any](ctx context.Context, s *Store, m map[K]V, k K, v V) {
	s.journal(ctx, snapshot(m, k))
	m[k] = v
}

func ptr[T any](v T) *T {
	return &v
}

// Seeding helpers used by tests and the dev driver.

func (s *Store) AddPatient(patientID, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[patientID] = userID
}

func (s *Store) AddAppointment(a model.Appointment) model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = model.AppointmentStatusPending
	}
	if a.FlowStatus == "" {
		a.FlowStatus = model.FlowWaiting
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = model.PaymentUnpaid
	}
	a.CreatedAt, a.UpdatedAt = s.now(), s.now()
	s.appointments[a.ID] = a
	return a
}

func (s *Store) AddRoom(r model.Room) model.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = model.RoomAvailable
	}
	r.CreatedAt, r.UpdatedAt = s.now(), s.now()
	s.rooms[r.ID] = r
	return r
}

func (s *Store) AddSchedule(sc model.Schedule) model.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	if sc.Status == "" {
		sc.Status = model.ScheduleAvailable
	}
	sc.CreatedAt, sc.UpdatedAt = s.now(), s.now()
	s.schedules[sc.ID] = sc
	return sc
}

func (s *Store) AddDoctor(d model.Doctor) model.Doctor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.UserID == uuid.Nil {
		d.UserID = uuid.New()
	}
	s.doctors[d.ID] = d
	return d
}

func (s *Store) AddLabTechnician(t model.LabTechnician) model.LabTechnician {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.UserID == uuid.Nil {
		t.UserID = uuid.New()
	}
	s.technicians[t.ID] = t
	return t
}

// Notifications returns every stored notification, oldest first.
func (s *Store) Notifications() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Notification, 0, len(s.notifOrder))
	for _, id := range s.notifOrder {
		out = append(out, s.notifications[id])
	}
	return out
}

// TestResults returns every stored lab result.
func (s *Store) TestResults() []model.TestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TestResult, 0, len(s.testResults))
	for _, r := range s.testResults {
		out = append(out, r)
	}
	return out
}
