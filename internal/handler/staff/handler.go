package staff

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/shift"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type Handler struct {
	availability *shift.Availability
}

func NewHandler(availability *shift.Availability) *Handler {
	return &Handler{availability: availability}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/staff/:kind/:id/on-duty", h.OnDuty)
}

type onDutyResponse struct {
	StaffID string          `json:"staff_id"`
	Kind    model.StaffKind `json:"kind"`
	OnDuty  bool            `json:"on_duty"`
	Shift   *model.Schedule `json:"shift,omitempty"`
}

func (h *Handler) OnDuty(c *gin.Context) {
	kind, ok := model.ParseStaffKind(c.Param("kind"))
	if !ok {
		handler.Fail(c, apperrors.BadRequest("unknown staff kind "+c.Param("kind"), nil))
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	current, err := h.availability.CurrentShift(c.Request.Context(), id, kind)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, onDutyResponse{
		StaffID: id.String(),
		Kind:    kind,
		OnDuty:  current != nil,
		Shift:   current,
	})
}
