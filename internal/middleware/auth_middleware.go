// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"boda-service/internal/pkg/jwt"
	"boda-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	tokens *jwt.Manager
}

func NewAuthMiddleware(tokens *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Auth validates the bearer token on admin routes and stores the admin
// identity on the request context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.tokens.Verify(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		c.Set("admin_email", claims.Subject)
		c.Set("jti", claims.ID)
		c.Next()
	}
}

// extractToken pulls the Bearer token from the Authorization header, with a
// query-param fallback for the websocket feed where headers are awkward.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	return c.Query("token")
}

// GetAdminEmail returns the authenticated admin identity from context.
func GetAdminEmail(c *gin.Context) (string, bool) {
	v, exists := c.Get("admin_email")
	if !exists {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}
