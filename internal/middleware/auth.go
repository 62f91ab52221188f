package middleware

import (
	"net/http"
	"strings"

	"nva-backoffice/internal/services"
	"nva-backoffice/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	ContextKeyAgentID  = "agent_id"
	ContextKeyUsername = "username"
	ContextKeyIsAdmin  = "is_admin"
)

// AuthRequired validates the bearer access token and stores its claims on
// the request context.
func AuthRequired(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			return
		}

		claims, err := tokens.Parse(parts[1], utils.TokenTypeAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ContextKeyAgentID, claims.AgentID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func GetAgentID(c *gin.Context) uint {
	val, exists := c.Get(ContextKeyAgentID)
	if !exists {
		return 0
	}
	id, _ := val.(uint)
	return id
}

func IsAdmin(c *gin.Context) bool {
	val, exists := c.Get(ContextKeyIsAdmin)
	if !exists {
		return false
	}
	admin, _ := val.(bool)
	return admin
}

func GetActor(c *gin.Context) services.Actor {
	return services.Actor{ID: GetAgentID(c), IsAdmin: IsAdmin(c)}
}
