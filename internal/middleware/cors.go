package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization, " + HeaderRequestID
)

type corsPolicy struct {
	any     bool
	origins map[string]bool
}

func parseOrigins(s string) corsPolicy {
	p := corsPolicy{origins: make(map[string]bool)}
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = true
		}
	}
	if len(p.origins) == 0 {
		p.any = true
	}
	return p
}

// allow returns the Access-Control-Allow-Origin value for origin, or "" to send no CORS headers.
func (p corsPolicy) allow(origin string) string {
	if origin != "" && p.origins[origin] {
		return origin
	}
	if p.any {
		return "*"
	}
	return ""
}

// CORS sets cross-origin headers for the admin frontend and scanner app.
// allowedOrigins is "*" or a comma-separated list. Listed origins also get credentials so the
// session cookie is sent; a wildcard never does.
func CORS(allowedOrigins string) gin.HandlerFunc {
	policy := parseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		if allow := policy.allow(c.GetHeader("Origin")); allow != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", HeaderRequestID+", Retry-After")
			h.Set("Access-Control-Max-Age", "86400")
			if allow != "*" {
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
