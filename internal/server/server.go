// Package server exposes the loop planner over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"loop-planner/internal/engine"
	"loop-planner/internal/logging"
	"loop-planner/internal/zones"
)

const requestIDHeader = "X-Request-ID"

// Planner produces loops. *engine.Engine satisfies it.
type Planner interface {
	GenerateRoute(ctx context.Context, lat, lng float64, steps int) (*engine.Result, error)
}

// ZoneSource lists the loaded unsafe regions.
type ZoneSource interface {
	Len() int
	Regions() []zones.Region
}

// Options wires the server's collaborators. Zones and Metrics are optional.
type Options struct {
	Planner Planner
	Zones   ZoneSource
	Metrics http.Handler
	Log     logrus.FieldLogger
}

type Server struct {
	router  *gin.Engine
	planner Planner
	zones   ZoneSource
	log     logrus.FieldLogger
}

// New builds the gin router with all endpoints registered.
func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}

	s := &Server{
		router:  gin.New(),
		planner: opts.Planner,
		zones:   opts.Zones,
		log:     log,
	}

	s.router.Use(gin.Recovery(), corsMiddleware(), s.requestContext())

	s.router.GET("/health", s.health)
	s.router.GET("/zones", s.listZones)
	s.router.POST("/route", s.route)
	if opts.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

// corsMiddleware allows browser clients from any origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestContext tags each request with an id and a scoped logger, then
// logs the request once it completes.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)

		log := s.log.WithField("request_id", id)
		c.Request = c.Request.WithContext(logging.ContextWithLogger(c.Request.Context(), log))

		started := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(started).String(),
		}).Info("Request served")
	}
}
