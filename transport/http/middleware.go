package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/blocchat/gatekeeper/service"
)

// walletKey is the gin context key carrying the authenticated wallet.
const walletKey = "walletAddress"

// WalletFromContext returns the wallet identity attached by RequireSession.
func WalletFromContext(c *gin.Context) (string, bool) {
	wallet, ok := c.Get(walletKey)
	if !ok {
		return "", false
	}
	s, ok := wallet.(string)
	return s, ok
}

// extractToken pulls the session credential from the Authorization header
// (bearer style) or, failing that, the session cookie. Both absent means no
// credential was presented.
func extractToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		if token := strings.TrimPrefix(auth, "Bearer "); token != "" {
			return token, true
		}
	}

	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		return token, true
	}

	return "", false
}

// RequireSession guards protected routes. It resolves the session credential
// to a wallet identity and attaches it to the request context; handlers never
// see raw tokens.
func RequireSession(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		wallet, ok := auth.Check(c.Request.Context(), token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		c.Set(walletKey, wallet)
		c.Next()
	}
}

// RequestLogger emits a structured access log per request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		} else if c.Writer.Status() >= http.StatusBadRequest {
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
