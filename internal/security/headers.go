// Package security carries the browser-facing middleware: hardening
// headers and CORS for the payment API.
package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// allowHeaders lists the request headers browser clients send to this
// service. Identity travels in X-User-ID (set by the reverse proxy, but
// preflights still name it) and admin calls add X-Admin-Secret.
const allowHeaders = "Content-Type, X-Request-ID, X-User-ID, X-Admin-Secret"

// HeadersMiddleware sets hardening headers on every response. The
// service serves JSON only, so the CSP forbids everything and responses
// carrying payment data are marked uncacheable.
func HeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		c.Next()
	}
}

// CORSMiddleware answers cross-origin requests. An empty allowlist
// admits any origin (development); "*" in the list does the same.
// Credentials are only granted to explicitly listed origins.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSpace(o)] = true
	}
	wildcard := len(allowedOrigins) == 0 || allowed["*"]

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if origin != "" && (wildcard || allowed[origin]) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Max-Age", "86400")
			h.Set("Vary", "Origin")
			if !wildcard {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
