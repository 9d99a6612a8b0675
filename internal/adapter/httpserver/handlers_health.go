package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wbdash/internal/platform/version"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second
)

// HealthCheck is a named dependency check. The World Bank check fails fast
// while its circuit breaker is open.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type checkResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupCheckTimeout)
	defer cancel()

	return s.writeHealth(c, s.runHealthChecks(ctx), false)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness runs every check and, when wired, adds the refresher's last
// success and failure. A failing refresh alone does not make the instance
// unready: sessions keep serving their previous tables.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessCheckTimeout)
	defer cancel()

	return s.writeHealth(c, s.runHealthChecks(ctx), true)
}

func (s *Server) runHealthChecks(ctx context.Context) []checkResult {
	results := make([]checkResult, 0, len(s.healthChecks))
	for _, hc := range s.healthChecks {
		result := checkResult{Name: hc.Name, OK: true}
		if err := hc.Check(ctx); err != nil {
			result.OK = false
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

func (s *Server) writeHealth(c echo.Context, results []checkResult, withRefresh bool) error {
	status, code := "ready", http.StatusOK
	for _, r := range results {
		if !r.OK {
			status, code = "unhealthy", http.StatusServiceUnavailable
			break
		}
	}

	response := map[string]any{
		"status": status,
		"checks": results,
	}
	if withRefresh && s.refreshStatus != nil {
		response["refresh"] = s.refreshStatus.Status()
	}

	if err := c.JSON(code, response); err != nil {
		return fmt.Errorf("failed to write health response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
