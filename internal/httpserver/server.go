package httpserver

import (
	"context"
	"net/http"
	"time"

	"commerce-basket/internal/logger"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wraps the HTTP server setup.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// New builds a Server with the basket routes. db may be nil when the service
// runs without a database.
func New(addr string, log *logger.Logger, db Pinger, deps Deps) (*Server, error) {
	log = logger.OrNop(log)
	router, err := buildRouter(log, db, deps)
	if err != nil {
		return nil, err
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		httpServer: httpSrv,
		log:        log,
	}, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readyHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "store": "memory"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "db not reachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
