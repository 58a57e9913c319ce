package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pushmint/notify-api/pkg/auth"
	"github.com/pushmint/notify-api/pkg/security"
)

const HeaderAPIKey = "X-API-Key"

// AuthMiddleware accepts either an admin bearer token or the hashed service
// API key used by trusted internal callers.
type AuthMiddleware struct {
	jwtService auth.JWTService
	hasher     security.KeyHasher
	apiKeyHash string
}

func NewAuthMiddleware(jwtService auth.JWTService, hasher security.KeyHasher, apiKeyHash string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		hasher:     hasher,
		apiKeyHash: apiKeyHash,
	}
}

// Authenticate verifies the caller and sets identity info in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(HeaderAPIKey); key != "" && m.apiKeyHash != "" {
			if err := m.hasher.Compare(m.apiKeyHash, key); err == nil {
				c.Set("caller", "service")
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("caller", claims.Subject)
		c.Set("caller_email", claims.Email)
		c.Next()
	}
}
