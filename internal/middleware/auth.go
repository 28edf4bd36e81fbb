package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/ticketing/internal/auth"
	"github.com/aura-events/ticketing/pkg/response"
)

// RevocationChecker reports logged-out sessions.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, id string) (bool, error)
}

func bearerToken(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	// Browsers cannot set headers on WebSocket handshakes.
	if c.IsWebsocket() {
		return c.Query("token")
	}
	return ""
}

// Authenticate resolves the session from the Authorization header or the session cookie and stores
// its claims in the context. Requests without a valid session continue anonymously.
func Authenticate(jwtService *auth.JWTService, sessions RevocationChecker, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := bearerToken(c, cookieName)
		if token == "" {
			c.Next()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			c.Next()
			return
		}
		if sessions != nil {
			revoked, err := sessions.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				logger.Warn("session revocation check failed", zap.Error(err))
				c.Next()
				return
			}
			if revoked {
				c.Next()
				return
			}
		}
		c.Set(auth.ContextClaims, claims)
		c.Next()
	}
}

// RequireStaff allows only authenticated staff sessions.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		if claims == nil {
			response.Abort(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !claims.IsStaff {
			response.Abort(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}
