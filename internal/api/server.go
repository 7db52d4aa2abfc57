package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/gardenlab/pestnet-go/internal/datastore"
	"github.com/gardenlab/pestnet-go/internal/knowledge"
	"github.com/gardenlab/pestnet-go/internal/logger"
	"github.com/gardenlab/pestnet-go/internal/observability"
	"github.com/gardenlab/pestnet-go/internal/pestnet"
)

// Server is the HTTP front end of the classifier.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	handle    *pestnet.Handle
	engine    *pestnet.Engine
	knowledge *knowledge.Base
	dataStore datastore.Interface
	metrics   *observability.Metrics

	startTime time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithDataStore enables detection history. Without it predictions are not
// persisted and the history routes answer 404.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) {
		s.dataStore = ds
	}
}

func WithKnowledge(kb *knowledge.Base) ServerOption {
	return func(s *Server) {
		s.knowledge = kb
	}
}

// WithMetrics records request metrics and exposes /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// New builds the server around handle. The handle may still be empty; /health
// reports it and /predict fails until a classifier is published.
func New(config *Config, handle *pestnet.Handle, opts ...ServerOption) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		handle:    handle,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if s.knowledge == nil {
		s.knowledge = knowledge.New()
	}

	var engineMetrics pestnet.Metrics
	if s.metrics != nil {
		engineMetrics = s.metrics.PestNet
	}
	s.engine = pestnet.NewEngine(handle, engineMetrics)

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger.SetLevel(log.OFF)
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("cors", config.CORS),
		logger.Bool("history", s.dataStore != nil),
		logger.Bool("debug", config.Debug))
	return s, nil
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.POST("/predict", s.predict, s.predictRateLimiter()...)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/detections", s.listDetections)
	v1.GET("/detections/stats", s.detectionStats)
	v1.GET("/detections/:id", s.getDetection)
}

// ServeHTTP lets the server be used as a plain http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", logger.String("address", ln.Addr().String()))
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down HTTP server")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
