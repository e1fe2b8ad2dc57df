package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ElementalEngine/core-api-backend/internal/config"
	jwtutil "github.com/ElementalEngine/core-api-backend/pkg/jwt"
)

// Auth validates the bearer token and stores the caller's identity in
// the request context.
func Auth(cfg *config.Config) gin.HandlerFunc {
	manager := jwtutil.NewManager(cfg.JWTSecret, cfg.JWTExpiration)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := manager.Verify(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set("serviceId", claims.ServiceID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
