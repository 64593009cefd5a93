package handler

import (
	"github.com/gin-gonic/gin"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func NewSuccessResponse(data any) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// Respond writes the success envelope.
func Respond(c *gin.Context, status int, data any) {
	c.JSON(status, NewSuccessResponse(data))
}
