package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hms-backend/internal/models"
	"hms-backend/pkg/utils"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID   = "userID"
	ContextUsername = "username"
	ContextRole     = "role"
)

// AuthMiddleware validates JWT access token from Authorization header
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization format. Use: Bearer <token>")
			c.Abort()
			return
		}

		claims, err := utils.ValidateAccessToken(parts[1])
		if err != nil || !claims.Role.IsValid() {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

// CurrentUser returns the authenticated user id and role, if any
func CurrentUser(c *gin.Context) (uint, models.Role, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return 0, "", false
	}
	role, ok := c.Get(ContextRole)
	if !ok {
		return 0, "", false
	}
	uid, ok1 := id.(uint)
	r, ok2 := role.(models.Role)
	return uid, r, ok1 && ok2
}
