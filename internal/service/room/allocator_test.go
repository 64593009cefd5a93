package room

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type fixture struct {
	store   *memory.Store
	repos   *repository.Repositories
	metrics *metrics.Metrics
}

func newFixture() *fixture {
	store := memory.NewStore()
	return &fixture{
		store:   store,
		repos:   store.Repositories(),
		metrics: metrics.New("test", prometheus.NewRegistry()),
	}
}

func (f *fixture) allocator(opts ...Option) *Allocator {
	return NewAllocator(f.repos, logger.Nop(), f.metrics, opts...)
}

func (f *fixture) examRoom(number string, specialty *uuid.UUID) model.Room {
	return f.store.AddRoom(model.Room{RoomNumber: number, Type: model.RoomTypeExamination, Capacity: 1, SpecialtyID: specialty})
}

func (f *fixture) roomStatus(t *testing.T, id uuid.UUID) model.RoomStatus {
	t.Helper()
	r, err := f.repos.Rooms.Get(context.Background(), id)
	require.NoError(t, err)
	return r.Status
}

func (f *fixture) appointmentRoom(t *testing.T, id uuid.UUID) *uuid.UUID {
	t.Helper()
	a, err := f.repos.Appointments.Get(context.Background(), id)
	require.NoError(t, err)
	return a.RoomID
}

func TestAssign_BindsExactlyOneAvailableRoom(t *testing.T) {
	f := newFixture()
	occupied := f.store.AddRoom(model.Room{RoomNumber: "100", Type: model.RoomTypeExamination, Status: model.RoomOccupied})
	free := f.examRoom("101", nil)
	f.store.AddRoom(model.Room{RoomNumber: "L1", Type: model.RoomTypeLaboratory})
	appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New()})

	got, err := f.allocator().Assign(context.Background(), appt.ID)
	require.NoError(t, err)

	assert.Equal(t, free.ID, got.RoomID)
	assert.Equal(t, "101", got.RoomNumber)
	assert.False(t, got.AlreadyAssigned)
	assert.Equal(t, model.RoomOccupied, f.roomStatus(t, free.ID))
	assert.Equal(t, model.RoomOccupied, f.roomStatus(t, occupied.ID))
	require.NotNil(t, f.appointmentRoom(t, appt.ID))
	assert.Equal(t, free.ID, *f.appointmentRoom(t, appt.ID))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RoomClaims.WithLabelValues("won")))
}

func TestAssign_IdempotentWhenRoomHeld(t *testing.T) {
	f := newFixture()
	held := f.store.AddRoom(model.Room{RoomNumber: "101", Type: model.RoomTypeExamination, Status: model.RoomOccupied})
	other := f.examRoom("102", nil)
	appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New(), RoomID: &held.ID})

	got, err := f.allocator().Assign(context.Background(), appt.ID)
	require.NoError(t, err)

	assert.Equal(t, held.ID, got.RoomID)
	assert.True(t, got.AlreadyAssigned)
	assert.Equal(t, model.RoomAvailable, f.roomStatus(t, other.ID), "no other room may change")
	assert.Equal(t, model.RoomOccupied, f.roomStatus(t, held.ID))
}

func TestAssign_MatchesDoctorSpecialty(t *testing.T) {
	f := newFixture()
	cardio, derm := uuid.New(), uuid.New()
	f.examRoom("101", &derm)
	f.examRoom("102", nil)
	want := f.examRoom("103", &cardio)
	doctor := f.store.AddDoctor(model.Doctor{Name: "House", SpecialtyID: &cardio})
	appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New(), DoctorID: &doctor.ID})

	got, err := f.allocator().Assign(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.RoomID)
}

func TestAssign_NoDoctorAcceptsAnyExamRoom(t *testing.T) {
	f := newFixture()
	specialty := uuid.New()
	only := f.examRoom("101", &specialty)
	appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New()})

	got, err := f.allocator().Assign(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, only.ID, got.RoomID)
}

func TestAssign_NoRoomAvailable(t *testing.T) {
	f := newFixture()
	f.store.AddRoom(model.Room{RoomNumber: "101", Type: model.RoomTypeExamination, Status: model.RoomOccupied})
	appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New()})

	_, err := f.allocator().Assign(context.Background(), appt.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNoRoomAvailable))
	assert.Nil(t, f.appointmentRoom(t, appt.ID))
}

func TestAssign_UnknownAppointment(t *testing.T) {
	f := newFixture()
	_, err := f.allocator().Assign(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAssign_ExaminedAppointmentRejected(t *testing.T) {
	f := newFixture()
	room := f.examRoom("101", nil)
	appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New(), FlowStatus: model.FlowExamined})

	_, err := f.allocator().Assign(context.Background(), appt.ID)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyCompleted))
	assert.Equal(t, model.RoomAvailable, f.roomStatus(t, room.ID))
}

func TestAssign_ClosedAppointmentsRejected(t *testing.T) {
	tests := []struct {
		name   string
		status model.AppointmentStatus
		code   apperrors.ErrorCode
	}{
		{"cancelled", model.AppointmentStatusCancelled, apperrors.CodeConflict},
		{"completed", model.AppointmentStatusCompleted, apperrors.CodeAlreadyCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			room := f.examRoom("101", nil)
			appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New(), Status: tt.status})

			_, err := f.allocator().Assign(context.Background(), appt.ID)
			assert.True(t, errors.Is(err, &apperrors.AppError{Code: tt.code}))
			assert.Equal(t, model.RoomAvailable, f.roomStatus(t, room.ID))
			assert.Nil(t, f.appointmentRoom(t, appt.ID))
		})
	}
}

// racingRooms lets another party claim the chosen room first.
type racingRooms struct {
	repository.RoomRepository
	stolen int
}

func (r *racingRooms) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	if r.stolen == 0 {
		r.stolen++
		if _, err := r.RoomRepository.Claim(context.Background(), id); err != nil {
			return false, err
		}
	}
	return r.RoomRepository.Claim(ctx, id)
}

func TestAssign_RetriesAfterLostClaim(t *testing.T) {
	f := newFixture()
	first := f.examRoom("101", nil)
	second := f.examRoom("102", nil)
	appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New()})

	f.repos.Rooms = &racingRooms{RoomRepository: f.repos.Rooms}
	a := f.allocator(WithPicker(func(int) int { return 0 }))

	got, err := a.Assign(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.RoomID)
	assert.Equal(t, model.RoomOccupied, f.roomStatus(t, first.ID))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RoomClaims.WithLabelValues("lost")))
}

func TestAssign_ClaimAttemptsExhausted(t *testing.T) {
	f := newFixture()
	f.examRoom("101", nil)
	f.examRoom("102", nil)
	appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New()})

	f.repos.Rooms = &racingRooms{RoomRepository: f.repos.Rooms}
	a := f.allocator(WithClaimAttempts(1))

	_, err := a.Assign(context.Background(), appt.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNoRoomAvailable))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RoomClaims.WithLabelValues("exhausted")))
}

type failingBind struct {
	repository.AppointmentRepository
}

func (failingBind) BindRoom(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, apperrors.Storage(errors.New("disk full"))
}

func TestAssign_BindFailureRollsBackClaim(t *testing.T) {
	f := newFixture()
	room := f.examRoom("101", nil)
	appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New()})

	f.repos.Appointments = failingBind{f.repos.Appointments}
	_, err := f.allocator().Assign(context.Background(), appt.ID)

	assert.True(t, errors.Is(err, apperrors.ErrStorage))
	assert.Equal(t, model.RoomAvailable, f.roomStatus(t, room.ID), "room must not stay occupied")
}

func TestAssign_ConcurrentNeverDoubleBooks(t *testing.T) {
	f := newFixture()
	const rooms, appts = 3, 10
	for i := 0; i < rooms; i++ {
		f.examRoom(string(rune('A'+i)), nil)
	}
	ids := make([]uuid.UUID, appts)
	for i := range ids {
		ids[i] = f.store.AddAppointment(model.Appointment{PatientID: uuid.New()}).ID
	}
	a := f.allocator(WithClaimAttempts(appts))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		assigned = map[uuid.UUID]uuid.UUID{}
		noRoom   int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			got, err := a.Assign(context.Background(), id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				assigned[got.RoomID] = id
			case errors.Is(err, apperrors.ErrNoRoomAvailable):
				noRoom++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Len(t, assigned, rooms, "each room goes to exactly one appointment")
	assert.Equal(t, appts-rooms, noRoom)
	for roomID, apptID := range assigned {
		got := f.appointmentRoom(t, apptID)
		require.NotNil(t, got)
		assert.Equal(t, roomID, *got)
	}
}

func TestRelease(t *testing.T) {
	f := newFixture()
	room := f.examRoom("101", nil)
	first := f.store.AddAppointment(model.Appointment{PatientID: uuid.New()})
	second := f.store.AddAppointment(model.Appointment{PatientID: uuid.New()})
	a := f.allocator()

	_, err := a.Assign(context.Background(), first.ID)
	require.NoError(t, err)

	released, err := a.Release(context.Background(), first.ID)
	require.NoError(t, err)
	assert.True(t, released)
	assert.Nil(t, f.appointmentRoom(t, first.ID))
	assert.Equal(t, model.RoomAvailable, f.roomStatus(t, room.ID))

	got, err := a.Assign(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.RoomID, "freed room may be re-selected")
}

func TestRelease_NoRoomIsNoop(t *testing.T) {
	f := newFixture()
	room := f.examRoom("101", nil)
	appt := f.store.AddAppointment(model.Appointment{PatientID: uuid.New()})

	released, err := f.allocator().Release(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, model.RoomAvailable, f.roomStatus(t, room.ID))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.RoomReleases))
}
