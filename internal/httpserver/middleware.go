package httpserver

import (
	"net/http"
	"strings"
	"time"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	"commerce-basket/internal/service/session"
	"github.com/gin-gonic/gin"
)

const (
	sessionHeader = "X-Session-Key"
	sessionCtxKey = "basket.sessionKey"
	principalKey  = "basket.principal"
)

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

// sessionMiddleware makes sure every basket request carries a live session
// key, issuing a fresh one when the header is missing or unknown. The key in
// use is echoed in the response header.
func sessionMiddleware(store session.Store, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := strings.TrimSpace(c.GetHeader(sessionHeader))
		if key != "" {
			ok, err := store.Exists(ctx, key)
			if err != nil {
				writeError(c, log, err)
				return
			}
			if !ok {
				key = ""
			}
		}
		if key == "" {
			issued, err := store.Issue(ctx)
			if err != nil {
				writeError(c, log, err)
				return
			}
			key = issued
		}
		c.Set(sessionCtxKey, key)
		c.Header(sessionHeader, key)
		c.Next()
	}
}

// principalMiddleware attaches the bearer principal, if any. A token that is
// present but invalid is rejected.
func principalMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || verifier == nil {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("unauthorized", "bearer token required"))
			return
		}
		principal, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("unauthorized", "invalid token"))
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func sessionKeyFrom(c *gin.Context) string {
	return c.GetString(sessionCtxKey)
}

func principalFrom(c *gin.Context) *domain.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*domain.Principal)
	return p
}
