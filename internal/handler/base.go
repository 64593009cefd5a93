// Package handler holds the helpers shared by the resource handlers. Every
// handler reports failures through c.Error; middleware.ErrorHandler renders
// them.
package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

// ParamID parses a uuid path parameter. On failure the error is recorded
// and false returned.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		_ = c.Error(apperrors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON decodes and validates the body into dst. Validation failures
// keep their field details; anything else is a plain bad request.
func BindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		_ = c.Error(verrs)
	} else {
		_ = c.Error(apperrors.BadRequest("invalid request body", err))
	}
	return false
}

// Fail records err for the error middleware.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
}
