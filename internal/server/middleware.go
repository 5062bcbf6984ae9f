package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/condoledger/internal/identity"
	"github.com/smallbiznis/condoledger/internal/logger"
	"github.com/smallbiznis/condoledger/pkg/errs"
	"go.uber.org/zap"
)

const headerRequestID = "X-Request-Id"

// RequestLogger assigns a request id and logs every request once it is done.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if principal, ok := identity.FromContext(c.Request.Context()); ok {
			fields = append(fields, zap.String("subject", principal.Subject))
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			errorType, errorCode := classifyErrorForLog(lastErr.Err)
			fields = append(fields, zap.String("error_type", errorType), zap.String("error_code", errorCode))
			if errorType == string(errs.KindInternal) {
				fields = append(fields, zap.Error(lastErr.Err))
			}
		}

		log := logger.WithContext(c.Request.Context(), base)
		switch {
		case route == "/metrics" || route == "/health":
			log.Debug("http_request", fields...)
		case status >= http.StatusInternalServerError:
			log.Error("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}

// Authenticated resolves the bearer token into the request principal.
func (s *Server) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			AbortWithError(c, errs.ErrUnauthenticated)
			return
		}
		principal, err := s.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Request = c.Request.WithContext(identity.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// RateLimited throttles mutating requests per principal. Reads pass through,
// and a Redis failure lets the request through.
func (s *Server) RateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		principal, ok := identity.FromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		result, err := s.limiter.Allow(c.Request.Context(), string(principal.Role)+":"+principal.Subject)
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
