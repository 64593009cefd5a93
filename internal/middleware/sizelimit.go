package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const DefaultMaxBodySize int64 = 1 << 20 // 1MB

// BodyLimit rejects declared oversize bodies up front and caps the rest
// with http.MaxBytesReader so binding fails once the limit is crossed.
func BodyLimit(max int64) gin.HandlerFunc {
	if max <= 0 {
		max = DefaultMaxBodySize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Status:  "error",
				Code:    http.StatusRequestEntityTooLarge,
				Message: "request body too large",
				TraceID: c.GetString(ContextRequestID),
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
