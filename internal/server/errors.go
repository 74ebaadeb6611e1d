package server

import (
	"ai-fitness-planner/internal/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError aborts with the caller-safe form of err. Causes stay in the
// server log.
func writeError(c *gin.Context, err error) {
	code, message, status := apperr.Public(err)
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: message})
}
