// Package http wires the REST boundary: join-token minting, session log
// reads, the admin no-show sweep and the websocket entry point.
package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mentorlink/consult/internal/domain"
	"github.com/mentorlink/consult/internal/token"
)

const identityKey = "user_id"

// BearerAuth verifies the access credential on plain REST calls. The
// websocket route does its own gating because browsers cannot set headers on
// an upgrade request.
func BearerAuth(tokens *token.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}
		id, err := tokens.VerifyAccessToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(identityKey, string(id.UserID))
		c.Next()
	}
}

// AdminAuth protects the out-of-band maintenance endpoints.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Admin-Key")
		if adminKey == "" || key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString(identityKey))
}
