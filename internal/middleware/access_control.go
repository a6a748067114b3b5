package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hms-backend/internal/access"
	"hms-backend/pkg/metrics"
	"hms-backend/pkg/utils"
)

// AccessControl enforces the role capability table on routes
type AccessControl struct {
	log     *zap.Logger
	metrics *metrics.Collector
}

func NewAccessControl(log *zap.Logger, m *metrics.Collector) *AccessControl {
	return &AccessControl{log: log, metrics: m}
}

// Require aborts with 403 unless the authenticated role holds capability.
// Denials are routine and logged at debug level only.
func (a *AccessControl) Require(capability access.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := CurrentUser(c)
		if !ok {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
			c.Abort()
			return
		}

		if !access.Can(role, capability) {
			a.metrics.AccessDeniedTotal.WithLabelValues(string(capability)).Inc()
			a.log.Debug("access denied",
				zap.Uint("user_id", userID),
				zap.String("role", string(role)),
				zap.String("capability", string(capability)),
				zap.String("path", c.FullPath()),
			)
			utils.ErrorResponse(c, http.StatusForbidden, "You do not have permission to perform this action")
			c.Abort()
			return
		}

		c.Next()
	}
}
