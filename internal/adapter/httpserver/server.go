package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wbdash/internal/app"
	"github.com/pscheid92/wbdash/internal/domain"
	"github.com/pscheid92/wbdash/internal/platform/config"
	"github.com/pscheid92/wbdash/web"
)

type appService interface {
	Indicators() domain.IndicatorCatalog
	DefaultRequest() domain.FilterRequest
	Figure(ctx context.Context, sessionID string, req domain.FilterRequest) (app.FigureView, error)
	Refresh(ctx context.Context, sessionID string) app.RefreshResult
	Records(ctx context.Context, sessionID string) (app.TableView, error)
	EndSession(ctx context.Context, sessionID string) error
}

// RefreshStatusProvider reports how the background refresh is doing.
type RefreshStatusProvider interface {
	Status() app.RefreshStatus
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app appService

	templates *template.Template

	sessionStore   *sessions.CookieStore
	healthChecks   []HealthCheck
	refreshStatus  RefreshStatusProvider
	metricsHandler http.Handler
	httpMetrics    echo.MiddlewareFunc
	startTime      time.Time
}

type Option func(*Server)

// WithMetrics serves handler on /metrics and records every request with mw.
func WithMetrics(handler http.Handler, mw echo.MiddlewareFunc) Option {
	return func(s *Server) {
		s.metricsHandler = handler
		s.httpMetrics = mw
	}
}

// WithRefreshStatus adds the refresher's state to the readiness report.
func WithRefreshStatus(p RefreshStatusProvider) Option {
	return func(s *Server) {
		s.refreshStatus = p
	}
}

func NewServer(cfg *config.Config, app appService, healthChecks []HealthCheck, opts ...Option) (*Server, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		sessionStore: setupSessionStore(cfg),
		templates:    templates,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) renderTemplate(c echo.Context, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(c.Request().Context(), "Template execution failed", "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(http.StatusOK, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}
	return sessionStore
}
