package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/wms-platform/inbound-service/pkg/logging"
)

// Identity headers set by the gateway
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	ContextKeyUserID   = "userId"
	ContextKeyUserRole = "userRole"
)

// Actor copies the caller identity headers into the gin and request contexts.
// Authentication happens upstream; requests without X-User-ID run anonymously.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader(HeaderUserID); userID != "" {
			c.Set(ContextKeyUserID, userID)
			c.Request = c.Request.WithContext(logging.ContextWithUserID(c.Request.Context(), userID))
		}
		if role := c.GetHeader(HeaderUserRole); role != "" {
			c.Set(ContextKeyUserRole, role)
		}
		c.Next()
	}
}

// GetUserID returns the caller's user ID, or "" for anonymous requests
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// GetUserRole returns the caller's role header
func GetUserRole(c *gin.Context) string {
	return c.GetString(ContextKeyUserRole)
}
