package lab

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/lab"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type Handler struct {
	service *lab.Service
}

func NewHandler(service *lab.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/lab/requests")
	{
		requests.POST("", middleware.RequireRole(auth.RoleDoctor, auth.RoleAdmin), h.CreateTestRequest)
		requests.GET("/:id", h.GetTestRequest)
		requests.POST("/:id/result", middleware.RequireRole(auth.RoleLabTechnician), h.EnterTestResult)
	}
}

// CreateTestRequest orders a test. Doctors can only order under their own id.
func (h *Handler) CreateTestRequest(c *gin.Context) {
	var req model.CreateTestRequestRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if caller, _ := middleware.IdentityFrom(c); caller.Role == auth.RoleDoctor && caller.StaffID != req.DoctorID {
		handler.Fail(c, apperrors.Forbidden("doctors can only order tests under their own id"))
		return
	}

	created, err := h.service.CreateTestRequest(c.Request.Context(), req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, created)
}

func (h *Handler) GetTestRequest(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	req, err := h.service.GetTestRequest(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, req)
}

// EnterTestResult records a result as the calling technician.
func (h *Handler) EnterTestResult(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.EnterTestResultRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	caller, _ := middleware.IdentityFrom(c)

	result, err := h.service.EnterTestResult(c.Request.Context(), caller.StaffID, id, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, result)
}
