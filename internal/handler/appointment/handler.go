package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	"github.com/jwalitptl/hospital-api/internal/service/room"
	"github.com/jwalitptl/hospital-api/internal/service/shift"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
)

type Handler struct {
	lifecycle    *appointment.Service
	rooms        *room.Allocator
	schedules    *shift.Reserver
	availability *shift.Availability
	logger       *logger.Logger
}

func NewHandler(
	lifecycle *appointment.Service,
	rooms *room.Allocator,
	schedules *shift.Reserver,
	availability *shift.Availability,
	log *logger.Logger,
) *Handler {
	return &Handler{
		lifecycle:    lifecycle,
		rooms:        rooms,
		schedules:    schedules,
		availability: availability,
		logger:       log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	clinicians := middleware.RequireRole(auth.RoleDoctor, auth.RoleAdmin)

	appointments := r.Group("/appointments")
	{
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id/status", h.UpdateStatus)
		appointments.POST("/:id/complete", clinicians, h.CompleteExamination)
		appointments.POST("/:id/room", h.AssignRoom)
		appointments.DELETE("/:id/room", h.ReleaseRoom)
		appointments.POST("/:id/schedule", h.ReserveSchedule)
		appointments.DELETE("/:id/schedule", h.ReleaseSchedule)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.DELETE("/:id", middleware.RequireRole(auth.RoleAdmin), h.DeleteAppointment)
	}
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	appt, err := h.lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, appt)
}

// UpdateStatus moves the patient-flow status. Doctors must be on duty, or
// inside the shift reserved for this appointment, to start an examination.
// Only doctors and admins may force. Reaching
// examined frees the room.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateFlowStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	caller, _ := middleware.IdentityFrom(c)
	if req.Force && caller.Role != auth.RoleDoctor && caller.Role != auth.RoleAdmin {
		handler.Fail(c, apperrors.Forbidden("only doctors and admins may force a status change"))
		return
	}
	if req.Status == model.FlowExamining && caller.Role == auth.RoleDoctor {
		current, err := h.lifecycle.Get(ctx, id)
		if err != nil {
			handler.Fail(c, err)
			return
		}
		if err := h.availability.RequireFor(ctx, caller.StaffID, model.StaffDoctor, current.ScheduleID); err != nil {
			handler.Fail(c, err)
			return
		}
	}

	appt, err := h.lifecycle.SetStatus(ctx, id, req.Status, req.Force)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	released := false
	if appt.FlowStatus == model.FlowExamined {
		released, err = h.rooms.Release(ctx, id)
		if err != nil {
			h.logger.Error(err, "failed to release room after status change", "appointment_id", id.String())
		}
		if released {
			appt.RoomID = nil
		}
	}

	handler.Respond(c, http.StatusOK, gin.H{
		"appointment":   appt,
		"room_released": released,
	})
}

func (h *Handler) CompleteExamination(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.ExaminationInput
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.lifecycle.CompleteExamination(c.Request.Context(), id, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, result)
}

func (h *Handler) AssignRoom(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	assignment, err := h.rooms.Assign(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	status := http.StatusCreated
	if assignment.AlreadyAssigned {
		status = http.StatusOK
	}
	handler.Respond(c, status, assignment)
}

func (h *Handler) ReleaseRoom(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	released, err := h.rooms.Release(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, gin.H{"released": released})
}

func (h *Handler) ReserveSchedule(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.ReserveScheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	sched, err := h.schedules.Reserve(c.Request.Context(), id, req.ScheduleID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, sched)
}

func (h *Handler) ReleaseSchedule(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	released, err := h.schedules.Release(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, gin.H{"released": released})
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.CancelAppointmentRequest
	// the body is optional
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
		return
	}

	appt, err := h.lifecycle.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, appt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.lifecycle.Delete(c.Request.Context(), id); err != nil {
		handler.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
