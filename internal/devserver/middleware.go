package devserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/boikhata/khata/jwt"
	"github.com/boikhata/khata/permission"
)

const (
	requestIDHeader = "X-Request-ID"
	claimsKey       = "devserver.claims"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Debug()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", c.Writer.Header().Get(requestIDHeader)).
			Msg("http request")
	}
}

func recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("error", r).
					Str("request_id", c.Writer.Header().Get(requestIDHeader)).
					Msg("panic recovered")
				fail(c, http.StatusInternalServerError, "Internal server error")
			}
		}()
		c.Next()
	}
}

// authenticate accepts the access token raw or with a Bearer prefix.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.faults.take(&s.faults.unauthorized) {
			fail(c, http.StatusUnauthorized, "You are not authorized!")
			return
		}

		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if scheme, rest, ok := strings.Cut(token, " "); ok && strings.EqualFold(scheme, "Bearer") {
			token = strings.TrimSpace(rest)
		}
		if token == "" {
			fail(c, http.StatusUnauthorized, "You are not authorized!")
			return
		}
		claims, err := s.issuer.Verify(token)
		if err != nil {
			fail(c, http.StatusUnauthorized, "You are not authorized!")
			return
		}

		if s.faults.take(&s.faults.forbidden) {
			fail(c, http.StatusForbidden, "Forbidden")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func requireRole(allowed ...permission.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := c.MustGet(claimsKey).(jwt.Claims)
		if !permission.Contains(allowed, claims.Role) {
			fail(c, http.StatusForbidden, "Forbidden")
			return
		}
		c.Next()
	}
}

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{"success": true, "message": message, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
