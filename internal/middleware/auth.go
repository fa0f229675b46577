package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studio-chat/internal/auth"
)

// Context keys populated by AuthMiddleware.
const (
	CtxActorID   = "actorID"
	CtxActorRole = "actorRole"
)

// AuthMiddleware validates the Authorization header and stores the actor on
// the request context.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		actor, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(CtxActorID, actor.ID)
		c.Set(CtxActorRole, actor.Role)
		c.Next()
	}
}

// ActorFromContext reads the authenticated actor set by AuthMiddleware.
func ActorFromContext(c *gin.Context) auth.Actor {
	return auth.Actor{ID: c.GetString(CtxActorID), Role: c.GetString(CtxActorRole)}
}

// RequireAdmin aborts with 403 unless the actor has the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ActorFromContext(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}
