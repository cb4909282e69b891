package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-booking/pkg/errors"
)

// Envelope is the JSON shape every endpoint returns.
type Envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Success writes a 200 envelope with optional data.
func Success(c *gin.Context, message string, data interface{}) {
	Status(c, 200, message, data)
}

// Created writes a 201 envelope with optional data.
func Created(c *gin.Context, message string, data interface{}) {
	Status(c, 201, message, data)
}

// Status writes a success envelope with an explicit status code.
func Status(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Error translates any error into the envelope, mapping AppError status codes.
func Error(c *gin.Context, err error) {
	appErr := errors.GetAppError(err)

	env := Envelope{
		Success:   false,
		Message:   appErr.Message,
		Error:     appErr.Code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	c.JSON(appErr.Status, env)
}
