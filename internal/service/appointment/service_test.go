package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/service/notification"
	"github.com/jwalitptl/hospital-api/internal/service/room"
	"github.com/jwalitptl/hospital-api/internal/service/shift"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type fixture struct {
	store     *memory.Store
	bus       *event.Bus
	allocator *room.Allocator
	reserver  *shift.Reserver
	service   *Service

	patientUser uuid.UUID
	doctor      model.Doctor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	m := metrics.New("test", prometheus.NewRegistry())
	log := logger.Nop()

	f := &fixture{
		store:       store,
		bus:         event.NewBus(log, m),
		allocator:   room.NewAllocator(repos, log, m),
		patientUser: uuid.New(),
		doctor:      store.AddDoctor(model.Doctor{Name: "Dr. Linh"}),
	}
	avail := shift.NewAvailability(repos.Schedules, log, shift.WithRosterTTL(0))
	f.reserver = shift.NewReserver(repos, avail, log)
	f.service = NewService(repos, f.allocator, f.reserver, f.bus, notification.NewService(repos.Notifications, log, m), log)
	return f
}

func (f *fixture) appointment(flow model.FlowStatus) model.Appointment {
	patient := uuid.New()
	f.store.AddPatient(patient, f.patientUser)
	return f.store.AddAppointment(model.Appointment{
		PatientID:  patient,
		DoctorID:   &f.doctor.ID,
		FlowStatus: flow,
	})
}

func (f *fixture) get(t *testing.T, id uuid.UUID) *model.Appointment {
	t.Helper()
	a, err := f.service.Get(context.Background(), id)
	require.NoError(t, err)
	return a
}

func TestSetStatus_FollowsTransitionTable(t *testing.T) {
	tests := []struct {
		from, to model.FlowStatus
		ok       bool
	}{
		{model.FlowWaiting, model.FlowExamining, true},
		{model.FlowWaiting, model.FlowExamined, true},
		{model.FlowExamining, model.FlowWaiting, true},
		{model.FlowExamining, model.FlowExamined, true},
		{model.FlowExamined, model.FlowWaiting, false},
		{model.FlowExamined, model.FlowExamining, false},
		{model.FlowWaiting, model.FlowWaiting, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			f := newFixture(t)
			appt := f.appointment(tt.from)

			got, err := f.service.SetStatus(context.Background(), appt.ID, tt.to, false)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, got.FlowStatus)
				assert.Equal(t, tt.to, f.get(t, appt.ID).FlowStatus)
				return
			}
			assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
			assert.Equal(t, tt.from, f.get(t, appt.ID).FlowStatus, "status unchanged")
		})
	}
}

func TestSetStatus_ForceOverridesTable(t *testing.T) {
	f := newFixture(t)
	appt := f.appointment(model.FlowExamined)

	got, err := f.service.SetStatus(context.Background(), appt.ID, model.FlowWaiting, true)
	require.NoError(t, err)
	assert.Equal(t, model.FlowWaiting, got.FlowStatus)
}

func TestSetStatus_TouchesOnlyStatus(t *testing.T) {
	f := newFixture(t)
	r := f.store.AddRoom(model.Room{RoomNumber: "101", Type: model.RoomTypeExamination})
	appt := f.appointment(model.FlowWaiting)
	_, err := f.allocator.Assign(context.Background(), appt.ID)
	require.NoError(t, err)

	_, err = f.service.SetStatus(context.Background(), appt.ID, model.FlowExamined, false)
	require.NoError(t, err)

	a := f.get(t, appt.ID)
	require.NotNil(t, a.RoomID, "room stays bound")
	assert.Equal(t, r.ID, *a.RoomID)
	assert.Empty(t, f.store.Notifications())
}

func TestSetStatus_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SetStatus(context.Background(), uuid.New(), model.FlowExamining, false)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	appt := f.appointment(model.FlowWaiting)
	_, err = f.service.SetStatus(context.Background(), appt.ID, model.FlowStatus("discharged"), true)
	assert.True(t, errors.Is(err, &apperrors.AppError{Code: apperrors.CodeBadRequest}))
}

func TestCompleteExamination_WritesRecordAndNotifiesBoth(t *testing.T) {
	f := newFixture(t)
	r := f.store.AddRoom(model.Room{RoomNumber: "101", Type: model.RoomTypeExamination})
	appt := f.appointment(model.FlowWaiting)
	ctx := context.Background()

	var seen []event.Event
	f.bus.Subscribe(event.TypeExamination, event.NewSubscriber("probe", func(_ context.Context, e event.Event) error {
		seen = append(seen, e)
		return nil
	}))

	assigned, err := f.allocator.Assign(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, assigned.RoomID)

	res, err := f.service.CompleteExamination(ctx, appt.ID, model.ExaminationInput{
		Diagnosis:      "Flu",
		AdditionalInfo: "Rest for 3 days",
	})
	require.NoError(t, err)
	assert.True(t, res.RoomReleased)
	assert.Equal(t, model.FlowExamined, res.FlowStatus)

	a := f.get(t, appt.ID)
	assert.Equal(t, model.FlowExamined, a.FlowStatus)
	assert.Equal(t, model.AppointmentStatusCompleted, a.Status)
	assert.Nil(t, a.RoomID)

	stored, err := f.store.Repositories().Rooms.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoomAvailable, stored.Status)

	rec, err := f.store.Repositories().MedicalRecords.GetByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, res.RecordID, rec.ID)
	assert.Equal(t, "Flu", rec.Diagnosis)

	notes := f.store.Notifications()
	require.Len(t, notes, 2)
	recipients := []uuid.UUID{notes[0].UserID, notes[1].UserID}
	assert.ElementsMatch(t, []uuid.UUID{f.patientUser, f.doctor.UserID}, recipients)
	for _, n := range notes {
		assert.Equal(t, model.KindExamination, n.Kind)
		assert.Equal(t, model.NotificationStatusPending, n.Status)
		assert.Contains(t, n.Content, "Flu")
		assert.Contains(t, n.Content, "Rest for 3 days")
	}

	require.Len(t, seen, 1)
	assert.Equal(t, appt.ID, seen[0].AppointmentID)
}

func TestCompleteExamination_RejectsSecondCompletion(t *testing.T) {
	f := newFixture(t)
	appt := f.appointment(model.FlowWaiting)
	ctx := context.Background()

	_, err := f.service.CompleteExamination(ctx, appt.ID, model.ExaminationInput{Diagnosis: "Flu"})
	require.NoError(t, err)

	_, err = f.service.CompleteExamination(ctx, appt.ID, model.ExaminationInput{Diagnosis: "Cold"})
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyCompleted))

	rec, err := f.store.Repositories().MedicalRecords.GetByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Flu", rec.Diagnosis)
	assert.Len(t, f.store.Notifications(), 2)
}

func TestCompleteExamination_RequiresDiagnosis(t *testing.T) {
	f := newFixture(t)
	appt := f.appointment(model.FlowWaiting)

	_, err := f.service.CompleteExamination(context.Background(), appt.ID, model.ExaminationInput{Diagnosis: "  "})
	assert.True(t, errors.Is(err, &apperrors.AppError{Code: apperrors.CodeBadRequest}))
	assert.Equal(t, model.FlowWaiting, f.get(t, appt.ID).FlowStatus)
}

type failingReleaser struct{}

func (failingReleaser) Release(context.Context, uuid.UUID) (bool, error) {
	return false, apperrors.Storage(errors.New("connection reset"))
}

func TestCompleteExamination_ReleaseFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.service.rooms = failingReleaser{}
	appt := f.appointment(model.FlowExamining)

	res, err := f.service.CompleteExamination(context.Background(), appt.ID, model.ExaminationInput{Diagnosis: "Flu"})
	require.NoError(t, err)
	assert.False(t, res.RoomReleased)
	assert.Equal(t, model.FlowExamined, f.get(t, appt.ID).FlowStatus)
	assert.Len(t, f.store.Notifications(), 2)
}

func TestCompleteExamination_UnknownDoctorNotifiesPatientOnly(t *testing.T) {
	f := newFixture(t)
	patient := uuid.New()
	f.store.AddPatient(patient, f.patientUser)
	stranger := uuid.New()
	appt := f.store.AddAppointment(model.Appointment{PatientID: patient, DoctorID: &stranger})

	_, err := f.service.CompleteExamination(context.Background(), appt.ID, model.ExaminationInput{Diagnosis: "Flu"})
	require.NoError(t, err)

	notes := f.store.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, f.patientUser, notes[0].UserID)
}

func TestCancel_ReleasesRoomAndSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.store.AddRoom(model.Room{RoomNumber: "101", Type: model.RoomTypeExamination})
	sched := f.store.AddSchedule(model.Schedule{
		DoctorID:  &f.doctor.ID,
		WorkDate:  "2024-05-14",
		StartTime: "08:00:00",
		EndTime:   "12:00:00",
	})
	appt := f.appointment(model.FlowWaiting)

	_, err := f.allocator.Assign(ctx, appt.ID)
	require.NoError(t, err)
	_, err = f.reserver.Reserve(ctx, appt.ID, sched.ID)
	require.NoError(t, err)

	got, err := f.service.Cancel(ctx, appt.ID, "patient called in sick")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)

	a := f.get(t, appt.ID)
	assert.Equal(t, model.AppointmentStatusCancelled, a.Status)
	require.NotNil(t, a.CancelReason)
	assert.Equal(t, "patient called in sick", *a.CancelReason)
	assert.Nil(t, a.RoomID)
	assert.Nil(t, a.ScheduleID)

	repos := f.store.Repositories()
	rm, _ := repos.Rooms.Get(ctx, r.ID)
	assert.Equal(t, model.RoomAvailable, rm.Status)
	sc, _ := repos.Schedules.Get(ctx, sched.ID)
	assert.Equal(t, model.ScheduleAvailable, sc.Status)

	notes := f.store.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, model.KindAppointment, notes[0].Kind)

	_, err = f.service.Cancel(ctx, appt.ID, "")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestCancel_RejectsExaminedAppointment(t *testing.T) {
	f := newFixture(t)
	appt := f.appointment(model.FlowExamined)

	_, err := f.service.Cancel(context.Background(), appt.ID, "")
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyCompleted))
	assert.Empty(t, f.store.Notifications())
}

func TestCancel_RollsBackWhenReleaseFails(t *testing.T) {
	f := newFixture(t)
	f.service.schedules = failingReleaser{}
	appt := f.appointment(model.FlowWaiting)

	_, err := f.service.Cancel(context.Background(), appt.ID, "no show")
	require.Error(t, err)
	assert.Equal(t, model.AppointmentStatusPending, f.get(t, appt.ID).Status)
}

func TestDelete_FreesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.store.AddRoom(model.Room{RoomNumber: "101", Type: model.RoomTypeExamination})
	appt := f.appointment(model.FlowWaiting)
	_, err := f.allocator.Assign(ctx, appt.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, appt.ID))

	_, err = f.service.Get(ctx, appt.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	rm, _ := f.store.Repositories().Rooms.Get(ctx, r.ID)
	assert.Equal(t, model.RoomAvailable, rm.Status)

	assert.True(t, errors.Is(f.service.Delete(ctx, appt.ID), apperrors.ErrNotFound))
}
