package httpsvc

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
)

// observe пишет access-лог в logrus и метрики запроса.
func (g *Gateway) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)
		g.metrics.ObserveRequest(c.Request.Method, c.FullPath(), status, elapsed)

		entry := g.logger.WithFields(log.Fields{
			"req_id":      reqID,
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
			"remote":      c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("error", c.Errors.String())
		}
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("http request")
		case status >= http.StatusBadRequest:
			entry.Warn("http request")
		default:
			entry.Info("http request")
		}
	}
}

// identify определяет клиента по Authorization: Bearer или заголовку token.
// Запрос без токена идёт дальше анонимно, решение о доступе принимает API.
func (g *Gateway) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(headerAuthorization))
		if token == "" {
			token = strings.TrimSpace(c.GetHeader(headerToken))
		}
		if token == "" {
			c.Next()
			return
		}

		identity, err := g.resolver.Resolve(token)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": statusFailed, "reason": "Invalid token."})
			return
		}
		c.Request = c.Request.WithContext(auth.NewContext(c.Request.Context(), identity))
		c.Next()
	}
}
