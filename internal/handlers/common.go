package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-trading-backend/internal/apperrors"
	"social-trading-backend/internal/auth"
)

// respondError maps a service error to the HTTP status taxonomy:
// InvalidArgument 400, NotFound 404, Conflict 409, everything else 500.
// The body shape is always {"error": string}.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// requirePrivyDID reads the authenticated DID, aborting with 401 when the
// middleware did not set one.
func requirePrivyDID(c *gin.Context) (string, bool) {
	did, ok := auth.GetPrivyDID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return did, true
}

// AdminMiddleware restricts a route group to the configured admin DIDs.
func AdminMiddleware(adminDIDs []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(adminDIDs))
	for _, did := range adminDIDs {
		allowed[did] = true
	}
	return func(c *gin.Context) {
		did, ok := auth.GetPrivyDID(c)
		if !ok || !allowed[did] {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
