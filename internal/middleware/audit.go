package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"hms-backend/internal/models"
	"hms-backend/internal/service"
)

// AuditRecorder is the part of the audit service the middleware needs
type AuditRecorder interface {
	Record(ctx context.Context, e service.AuditEntry)
}

// AuditAction records action on model after the handler finishes, but only
// for a 2xx response to an authenticated user. Use it on routes whose
// service call does not already audit itself.
func AuditAction(recorder AuditRecorder, action models.AuditAction, model string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		userID, role, ok := CurrentUser(c)
		if !ok {
			return
		}

		recorder.Record(c.Request.Context(), service.AuditEntry{
			Actor: service.Actor{
				UserID:    userID,
				Role:      role,
				IPAddress: c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
			},
			Action:    action,
			ModelName: model,
			Details:   c.Request.Method + " " + c.Request.URL.RequestURI(),
		})
	}
}
