package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

// Recovery turns a handler panic into the standard 500 body. A panic
// raised after the response started only gets logged.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}

			event := log.Error().
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Str("request_id", c.GetString(ContextRequestID))
			if id, ok := IdentityFrom(c); ok {
				event = event.Str("staff_id", id.StaffID.String())
			}
			event.Msg("Request panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			status, resp := renderError(apperrors.Internal(fmt.Errorf("panic: %v", p)))
			resp.TraceID = c.GetString(ContextRequestID)
			c.AbortWithStatusJSON(status, resp)
		}()
		c.Next()
	}
}
