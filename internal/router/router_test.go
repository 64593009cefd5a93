package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appointmentHandler "github.com/jwalitptl/hospital-api/internal/handler/appointment"
	"github.com/jwalitptl/hospital-api/internal/handler/health"
	labHandler "github.com/jwalitptl/hospital-api/internal/handler/lab"
	promHandler "github.com/jwalitptl/hospital-api/internal/handler/prometheus"
	staffHandler "github.com/jwalitptl/hospital-api/internal/handler/staff"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/service/lab"
	"github.com/jwalitptl/hospital-api/internal/service/notification"
	"github.com/jwalitptl/hospital-api/internal/service/room"
	"github.com/jwalitptl/hospital-api/internal/service/shift"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var clock = time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)

type server struct {
	t      *testing.T
	store  *memory.Store
	tokens *auth.JWTService
	engine *gin.Engine

	doctor  model.Doctor
	tech    model.LabTechnician
	patient uuid.UUID
}

func newServer(t *testing.T, checks ...health.Check) *server {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)
	log := logger.Nop()

	bus := event.NewBus(log, m)
	notifier := notification.NewService(repos.Notifications, log, m)
	avail := shift.NewAvailability(repos.Schedules, log,
		shift.WithClock(func() time.Time { return clock }),
		shift.WithLocation(time.UTC),
		shift.WithRosterTTL(0),
	)
	allocator := room.NewAllocator(repos, log, m)
	reserver := shift.NewReserver(repos, avail, log)
	lifecycle := appointment.NewService(repos, allocator, reserver, bus, notifier, log)
	labSvc := lab.NewService(repos, avail, bus, notifier, log)

	tokens := auth.NewJWTService("test-secret")
	r := NewRouter(
		middleware.NewAuthMiddleware(tokens),
		health.NewHandler(checks...),
		promHandler.New(reg, m),
		RouterConfig{RequestTimeout: 5 * time.Second},
		appointmentHandler.NewHandler(lifecycle, allocator, reserver, avail, log),
		staffHandler.NewHandler(avail),
		labHandler.NewHandler(labSvc),
	)
	r.Setup()

	s := &server{
		t:       t,
		store:   store,
		tokens:  tokens,
		engine:  r.Engine(),
		doctor:  store.AddDoctor(model.Doctor{Name: "Dr. Quang"}),
		tech:    store.AddLabTechnician(model.LabTechnician{Name: "Thu"}),
		patient: uuid.New(),
	}
	return s
}

func (s *server) token(staffID uuid.UUID, role auth.Role) string {
	s.t.Helper()
	tok, err := s.tokens.Issue(staffID, uuid.New(), role, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *server) asDoctor() string { return s.token(s.doctor.ID, auth.RoleDoctor) }
func (s *server) asTech() string   { return s.token(s.tech.ID, auth.RoleLabTechnician) }

func (s *server) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *server) appointment() model.Appointment {
	user := uuid.New()
	s.store.AddPatient(s.patient, user)
	return s.store.AddAppointment(model.Appointment{PatientID: s.patient, DoctorID: &s.doctor.ID})
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	return resp.Data
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/health/ready", "", nil).Code)

	down := newServer(t, health.Check{Name: "database", Probe: func(context.Context) error {
		return errors.New("connection refused")
	}})
	w := down.do(http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	s.do(http.MethodGet, "/api/v1/health/live", "", nil)

	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",path="/api/v1/health/live",status="200"} 1`)
}

func TestRequiresAuthentication(t *testing.T) {
	s := newServer(t)
	appt := s.appointment()

	w := s.do(http.MethodPatch, "/api/v1/appointments/"+appt.ID.String()+"/status", "", map[string]any{"status": "examining"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExaminationFlow(t *testing.T) {
	s := newServer(t)
	doctor := s.asDoctor()
	s.store.AddSchedule(model.Schedule{DoctorID: &s.doctor.ID, WorkDate: "2024-05-14", StartTime: "08:00:00", EndTime: "12:00:00", Status: model.ScheduleActive})
	rm := s.store.AddRoom(model.Room{RoomNumber: "204", Type: model.RoomTypeExamination})
	appt := s.appointment()
	base := "/api/v1/appointments/" + appt.ID.String()

	w := s.do(http.MethodPost, base+"/room", doctor, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "204", data(t, w)["room_number"])

	w = s.do(http.MethodPost, base+"/room", doctor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, data(t, w)["already_assigned"])

	w = s.do(http.MethodPatch, base+"/status", doctor, map[string]any{"status": "examining"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, base+"/complete", doctor, map[string]any{"diagnosis": "flu"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "examined", data(t, w)["patient_status"])

	stored, err := s.store.Repositories().Rooms.Get(context.Background(), rm.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoomAvailable, stored.Status)
	assert.Len(t, s.store.Notifications(), 2)

	w = s.do(http.MethodPost, base+"/complete", doctor, map[string]any{"diagnosis": "flu"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPatch, base+"/status", doctor, map[string]any{"status": "waiting"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "examined")
}

func TestUpdateStatus_Validation(t *testing.T) {
	s := newServer(t)
	appt := s.appointment()
	base := "/api/v1/appointments/" + appt.ID.String()

	w := s.do(http.MethodPatch, base+"/status", s.asDoctor(), map[string]any{"status": "discharged"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"status"`)

	w = s.do(http.MethodPatch, "/api/v1/appointments/not-a-uuid/status", s.asDoctor(), map[string]any{"status": "waiting"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	nurse := s.token(uuid.New(), auth.RoleNurse)
	w = s.do(http.MethodPatch, base+"/status", nurse, map[string]any{"status": "waiting", "force": true})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateStatus_DoctorMustBeOnDuty(t *testing.T) {
	s := newServer(t)
	appt := s.appointment()

	w := s.do(http.MethodPatch, "/api/v1/appointments/"+appt.ID.String()+"/status", s.asDoctor(), map[string]any{"status": "examining"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not currently on duty")
}

func TestUpdateStatus_ReservedShiftAllowsExamination(t *testing.T) {
	s := newServer(t)
	doctor := s.asDoctor()
	sched := s.store.AddSchedule(model.Schedule{DoctorID: &s.doctor.ID, WorkDate: "2024-05-14", StartTime: "08:00:00", EndTime: "12:00:00"})
	appt := s.appointment()
	base := "/api/v1/appointments/" + appt.ID.String()

	w := s.do(http.MethodPost, base+"/schedule", doctor, map[string]any{"schedule_id": sched.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the shift is booked now, so only its own appointment may use it
	other := s.appointment()
	w = s.do(http.MethodPatch, "/api/v1/appointments/"+other.ID.String()+"/status", doctor, map[string]any{"status": "examining"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPatch, base+"/status", doctor, map[string]any{"status": "examining"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCancelledAppointmentCannotTakeResources(t *testing.T) {
	s := newServer(t)
	doctor := s.asDoctor()
	sched := s.store.AddSchedule(model.Schedule{DoctorID: &s.doctor.ID, WorkDate: "2024-05-15", StartTime: "08:00:00", EndTime: "12:00:00"})
	rm := s.store.AddRoom(model.Room{RoomNumber: "204", Type: model.RoomTypeExamination})
	appt := s.appointment()
	base := "/api/v1/appointments/" + appt.ID.String()

	w := s.do(http.MethodPost, base+"/cancel", doctor, map[string]any{"reason": "patient called"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, base+"/room", doctor, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(http.MethodPost, base+"/schedule", doctor, map[string]any{"schedule_id": sched.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	repos := s.store.Repositories()
	gotRoom, err := repos.Rooms.Get(context.Background(), rm.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoomAvailable, gotRoom.Status)
	gotSched, err := repos.Schedules.Get(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleAvailable, gotSched.Status)
}

func TestAssignRoom_NoneFree(t *testing.T) {
	s := newServer(t)
	appt := s.appointment()

	w := s.do(http.MethodPost, "/api/v1/appointments/"+appt.ID.String()+"/room", s.asDoctor(), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestScheduleAndCancel(t *testing.T) {
	s := newServer(t)
	doctor := s.asDoctor()
	sched := s.store.AddSchedule(model.Schedule{DoctorID: &s.doctor.ID, WorkDate: "2024-05-15", StartTime: "08:00:00", EndTime: "12:00:00"})
	appt := s.appointment()
	base := "/api/v1/appointments/" + appt.ID.String()

	w := s.do(http.MethodPost, base+"/schedule", doctor, map[string]any{"schedule_id": sched.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "booked", data(t, w)["status"])

	req := httptest.NewRequest(http.MethodPost, base+"/cancel", nil)
	req.Header.Set("Authorization", "Bearer "+doctor)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", data(t, rec)["status"])

	got, err := s.store.Repositories().Schedules.Get(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleAvailable, got.Status)

	w = s.do(http.MethodPost, base+"/cancel", doctor, map[string]any{"reason": "again"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	s := newServer(t)
	appt := s.appointment()
	path := "/api/v1/appointments/" + appt.ID.String()

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, path, s.asDoctor(), nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path, s.token(uuid.New(), auth.RoleAdmin), nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, s.asDoctor(), nil).Code)
}

func TestOnDuty(t *testing.T) {
	s := newServer(t)
	s.store.AddSchedule(model.Schedule{LabTechnicianID: &s.tech.ID, WorkDate: "2024-05-14", StartTime: "08:00:00", EndTime: "12:00:00"})

	w := s.do(http.MethodGet, "/api/v1/staff/lab-technicians/"+s.tech.ID.String()+"/on-duty", s.asTech(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, data(t, w)["on_duty"])

	w = s.do(http.MethodGet, "/api/v1/staff/doctors/"+s.doctor.ID.String()+"/on-duty", s.asTech(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, data(t, w)["on_duty"])

	w = s.do(http.MethodGet, "/api/v1/staff/janitors/"+s.doctor.ID.String()+"/on-duty", s.asTech(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLabWorkflow(t *testing.T) {
	s := newServer(t)
	appt := s.appointment()

	w := s.do(http.MethodPost, "/api/v1/lab/requests", s.asTech(), map[string]any{
		"appointment_id": appt.ID, "doctor_id": s.doctor.ID, "test_type": "CBC",
	})
	assert.Equal(t, http.StatusForbidden, w.Code, "technicians cannot order tests")

	w = s.do(http.MethodPost, "/api/v1/lab/requests", s.asDoctor(), map[string]any{
		"appointment_id": appt.ID, "doctor_id": s.doctor.ID, "test_type": "CBC",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	requestID := data(t, w)["id"].(string)
	resultPath := "/api/v1/lab/requests/" + requestID + "/result"

	w = s.do(http.MethodPost, resultPath, s.asTech(), map[string]any{"result": "normal"})
	assert.Equal(t, http.StatusForbidden, w.Code, "technician has no shift")

	s.store.AddSchedule(model.Schedule{LabTechnicianID: &s.tech.ID, WorkDate: "2024-05-14", StartTime: "08:00:00", EndTime: "12:00:00", Status: model.ScheduleActive})
	w = s.do(http.MethodPost, resultPath, s.asTech(), map[string]any{"result": "normal"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, resultPath, s.asTech(), map[string]any{"result": "normal"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/lab/requests/"+requestID, s.asDoctor(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", data(t, w)["status"])

	var kinds []string
	for _, n := range s.store.Notifications() {
		kinds = append(kinds, string(n.Kind))
	}
	assert.Equal(t, "test_request,test_result,test_result", strings.Join(kinds, ","))
}
