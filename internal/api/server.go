// Package api is the HTTP surface over a workspace.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skillgrid/internal/batch"
	"github.com/skillgrid/internal/grid"
	"github.com/skillgrid/internal/workspace"
)

// Enqueuer hands column runs to a durable queue.
type Enqueuer interface {
	EnqueueColumnRun(ctx context.Context, matrixID, columnID string, mode batch.Mode, confirmed bool) (int64, error)
}

// Options configure a Server.
type Options struct {
	Addr        string
	CORSOrigins []string
	// Queue, when set, receives column runs instead of the in-process tracker.
	Queue    Enqueuer
	Viewport grid.Viewport
	Logger   *zerolog.Logger
}

// Server represents the API server
type Server struct {
	echo   *echo.Echo
	ws     *workspace.Workspace
	opts   Options
	logger zerolog.Logger
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i interface{}) error {
	if err := rv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// NewServer creates a new API server
func NewServer(ws *workspace.Workspace, opts Options) *Server {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Viewport.RowHeight <= 0 {
		opts.Viewport = grid.DefaultViewport(480, 0)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New()}

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Debug()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = logger.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("HTTP request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if len(opts.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: opts.CORSOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	server := &Server{
		echo:   e,
		ws:     ws,
		opts:   opts,
		logger: logger,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 group
	v1 := s.echo.Group("/api/v1")

	v1.POST("/validate", s.validate)

	v1.GET("/skills", s.listSkills)
	v1.GET("/skills/:id", s.getSkill)

	v1.GET("/matrices", s.listMatrices)
	v1.GET("/matrices/:id", s.getMatrix)
	v1.PUT("/matrices/:id", s.putMatrix)
	v1.GET("/matrices/:id/viewport", s.viewport)

	v1.PUT("/matrices/:id/rows/:row/cells/:col", s.editCell)
	v1.POST("/matrices/:id/rows/:row/cells/:col/run", s.runCell)
	v1.DELETE("/matrices/:id/rows/:row/cells/:col/run", s.cancelCell)

	v1.POST("/matrices/:id/columns/:col/runs", s.startColumnRun)
	v1.POST("/matrices/:id/columns/:col/preview", s.preview)
	v1.GET("/runs/:runId", s.getRun)
	v1.DELETE("/runs/:runId", s.cancelRun)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("API server listening")
		if err := s.echo.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
