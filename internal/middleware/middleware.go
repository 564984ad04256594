package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"todoweb/internal/auth"
	"todoweb/pkg/logger"
)

const (
	// SessionCookieName is the cookie carrying the opaque session ID.
	SessionCookieName = "session_id"

	contextKeyUserID    = "user_id"
	contextKeySessionID = "session_id"
)

// UserID returns the authenticated user's ID set by RequireSession or
// RequireAPIToken. 0 when unauthenticated.
func UserID(c *gin.Context) int64 {
	v, ok := c.Get(contextKeyUserID)
	if !ok {
		return 0
	}
	id, _ := v.(int64)
	return id
}

// SessionID returns the current session ID, or "" for token-authenticated requests.
func SessionID(c *gin.Context) string {
	v, ok := c.Get(contextKeySessionID)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// RequestLogger assigns a request ID, carries it on the request context
// logger, and logs each request on completion.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := logger.WithRequestID(c.Request.Context(), uuid.New().String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		logger.Info(ctx, "Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// RequireSession resolves the session cookie to a user ID and stores it in
// the gin context. Requests without a valid session are redirected to the
// login page before any handler logic runs.
func RequireSession(sessions auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookieName)
		if err != nil || sessionID == "" {
			c.Redirect(http.StatusFound, "/auth/login")
			c.Abort()
			return
		}
		userID, ok := sessions.GetUserID(c.Request.Context(), sessionID)
		if !ok {
			c.Redirect(http.StatusFound, "/auth/login")
			c.Abort()
			return
		}
		c.Set(contextKeyUserID, userID)
		c.Set(contextKeySessionID, sessionID)
		c.Next()
	}
}

// RequireAPIToken authenticates /api requests with a Bearer JWT whose
// subject is the user ID.
func RequireAPIToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if header == "" || !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server misconfiguration"})
			return
		}
		tokenStr := strings.TrimSpace(header[len(prefix):])
		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			logger.Debug(ctx, "JWT parse failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(contextKeyUserID, userID)
		c.Next()
	}
}
