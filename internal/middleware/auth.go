package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/whiteboard/backend/internal/auth"
)

// TokenValidator is satisfied by both auth.Validator and
// auth.MockValidator, letting main wire either one in without this
// package knowing which.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.CustomClaims, error)
}

// RequireAuth gates the administrative HTTP surface (spec.md §6.2)
// behind a bearer token. It never runs on the WebSocket ingress path —
// the wire protocol's userId is a client-asserted opaque string by
// design (SPEC_FULL.md §5).
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := validator.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}
