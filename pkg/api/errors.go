package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlosapgomes/triage-automation/pkg/auth"
)

// writeAuthError maps a Guard resolution error to the matching HTTP
// status, mirroring widget_router.py's/monitoring_router.py's exception
// handlers (MissingAuthTokenError/InvalidAuthTokenError -> 401,
// RoleNotAuthorizedError -> 403).
func writeAuthError(c *gin.Context, err error) {
	switch err.(type) {
	case *auth.MissingAuthTokenError, *auth.InvalidAuthTokenError:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case *auth.RoleNotAuthorizedError:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
