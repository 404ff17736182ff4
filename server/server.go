// Package server - HTTP API exposing live results and pipeline control.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/pipeline"
)

// Controller is the part of pipeline.Pipeline the API drives.
type Controller interface {
	Model() model.Config
	Catalogue() []model.Config
	Select(name model.Name) error
	Start() error
	Stop()
	Running() bool
	Busy() bool
	Generation() uint64
	Stats() *pipeline.Stats
}

// Server serves the results API.
type Server struct {
	addr       string
	ctrl       Controller
	hub        *Hub
	log        *logger.Logger
	router     *gin.Engine
	httpServer *http.Server
	startTime  time.Time
}

// New creates a server and registers its routes.
//
// Arguments:
//   - addr: The listen address, e.g. ":8080".
//   - ctrl: The pipeline.
//   - hub: The sink the pipeline publishes to.
//   - log: The logger.
//
// Returns:
//   - *Server: The server, not yet listening.
func New(addr string, ctrl Controller, hub *Hub, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	s := &Server{
		addr:      addr,
		ctrl:      ctrl,
		hub:       hub,
		log:       log.Named("server"),
		router:    router,
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background until Stop.
func (s *Server) Start() {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.log.Info("starting results server", "address", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("results server error", "err", err, "address", s.addr)
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("stopping results server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/results", s.handleResults)
		api.GET("/stats", s.handleStats)
		api.GET("/stream", s.handleStream)

		models := api.Group("/models")
		{
			models.GET("", s.handleListModels)
			models.POST("/active", s.handleSelectModel)
		}

		control := api.Group("/pipeline")
		{
			control.POST("/start", s.handleStart)
			control.POST("/stop", s.handleStop)
		}
	}
}

func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
