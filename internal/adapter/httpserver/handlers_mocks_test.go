package httpserver

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wbdash/internal/app"
	"github.com/pscheid92/wbdash/internal/domain"
	"github.com/pscheid92/wbdash/internal/platform/config"
)

// --- Mock implementations ---

type mockAppService struct {
	figureFn  func(ctx context.Context, sessionID string, req domain.FilterRequest) (app.FigureView, error)
	refreshFn func(ctx context.Context, sessionID string) app.RefreshResult
	recordsFn func(ctx context.Context, sessionID string) (app.TableView, error)
	endFn     func(ctx context.Context, sessionID string) error
}

func (m *mockAppService) Indicators() domain.IndicatorCatalog {
	return domain.DefaultIndicators()
}

func (m *mockAppService) DefaultRequest() domain.FilterRequest {
	return domain.DefaultFilterRequest(domain.DefaultIndicators())
}

func (m *mockAppService) Figure(ctx context.Context, sessionID string, req domain.FilterRequest) (app.FigureView, error) {
	if m.figureFn != nil {
		return m.figureFn(ctx, sessionID, req)
	}
	return app.FigureView{Request: req}, nil
}

func (m *mockAppService) Refresh(ctx context.Context, sessionID string) app.RefreshResult {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, sessionID)
	}
	return app.RefreshResult{Outcome: domain.RefreshOutcomeRefreshed}
}

func (m *mockAppService) Records(ctx context.Context, sessionID string) (app.TableView, error) {
	if m.recordsFn != nil {
		return m.recordsFn(ctx, sessionID)
	}
	return app.TableView{Records: []map[string]any{}}, nil
}

func (m *mockAppService) EndSession(ctx context.Context, sessionID string) error {
	if m.endFn != nil {
		return m.endFn(ctx, sessionID)
	}
	return nil
}

// --- Test helpers ---

func newTestServer(t *testing.T, app appService, opts ...Option) *Server {
	t.Helper()

	tmpl := template.Must(template.New("dashboard.html").Parse(`Dashboard {{.Selected}} {{.YearStart}}-{{.YearEnd}} every {{.RefreshIntervalMs}}ms token={{.CSRFToken}}`))

	store := sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!!"))
	store.Options = &sessions.Options{
		Path:   "/",
		MaxAge: 3600,
	}

	e := echo.New()

	srv := &Server{
		echo: e,
		config: &config.Config{
			SessionMaxAge:      time.Hour,
			RefreshInterval:    time.Minute,
			RateLimitPerSecond: 1000,
			RateLimitBurst:     1000,
		},
		app:          app,
		sessionStore: store,
		templates:    tmpl,
		startTime:    time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	// Register routes so endpoints are available for testing
	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

// serve runs req through the full middleware stack.
func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

// withCookies copies the cookies set by an earlier response onto req.
func withCookies(req *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
	return req
}

func cookieValue(rec *httptest.ResponseRecorder, name string) string {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}
