package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wbdash/internal/domain"
)

func (s *Server) registerDashboardRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	s.echo.GET("/dashboard", s.handleDashboard, s.requireSession, rateLimiter, csrfMiddleware)
}

func (s *Server) handleLanding(c echo.Context) error {
	if err := c.Redirect(http.StatusFound, "/dashboard"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func (s *Server) handleDashboard(c echo.Context) error {
	defaults := s.app.DefaultRequest()

	years := make([]int, 0, domain.MaxYear-domain.MinYear+1)
	for y := domain.MinYear; y <= domain.MaxYear; y++ {
		years = append(years, y)
	}

	data := map[string]any{
		"Indicators":        s.app.Indicators(),
		"Selected":          defaults.Indicator,
		"YearStart":         defaults.YearStart,
		"YearEnd":           defaults.YearEnd,
		"Years":             years,
		"RefreshIntervalMs": s.config.RefreshInterval.Milliseconds(),
		"CSRFToken":         c.Get("csrf"),
	}

	return s.renderTemplate(c, "dashboard.html", data)
}
