package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/nycu-course-go/internal/ctxutil"
	"github.com/garyellow/nycu-course-go/internal/logger"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

var requestIDHeaders = []string{RequestIDHeader, "X-Correlation-Id"}

// RequestID puts a request ID into the request context and echoes it back.
// An incoming X-Request-Id or X-Correlation-Id is reused; otherwise a new
// UUID is generated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		var requestID string
		for _, h := range requestIDHeaders {
			if requestID = c.GetHeader(h); requestID != "" {
				break
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// SecurityHeaders sets response headers for a JSON-only API.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Next()
	}
}

// Logging logs one line per request. Health probes are logged at debug level.
func Logging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(map[string]any{
			"http_method": c.Request.Method,
			"http_path":   c.Request.URL.Path,
			"http_status": status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		})
		if requestID, ok := ctxutil.GetRequestID(c.Request.Context()); ok {
			entry = entry.WithRequestID(requestID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("HTTP request failed")
		case status == http.StatusNotFound:
			entry.Debug("HTTP request not found")
		case status >= http.StatusBadRequest:
			entry.Warn("HTTP request rejected")
		case c.FullPath() == "/livez" || c.FullPath() == "/readyz":
			entry.Debug("HTTP probe completed")
		default:
			entry.Info("HTTP request completed")
		}
	}
}

// BasicAuth guards a route with HTTP Basic Auth. An empty password
// disables the check.
func BasicAuth(realm, username, password string) gin.HandlerFunc {
	if password == "" {
		return func(c *gin.Context) { c.Next() }
	}
	challenge := `Basic realm="` + realm + `"`
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		if !ok || !userMatch || !passMatch {
			c.Header("WWW-Authenticate", challenge)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// RateLimit rejects clients that exceed limiter with 429. Clients are
// keyed by IP address.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := limiter.Allow(c.ClientIP())
		if !ok {
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			c.Header("Retry-After", strconv.Itoa(max(seconds, 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
