package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wbdash/internal/domain"
	apperrors "github.com/pscheid92/wbdash/internal/platform/errors"
)

func (s *Server) registerAPIRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	api := s.echo.Group("/api", s.requireSession, rateLimiter, csrfMiddleware)
	api.GET("/indicators", s.handleIndicators)
	api.GET("/choropleth", s.handleChoropleth)
	api.POST("/refresh", s.handleRefresh)
	api.GET("/data", s.handleData)
	api.POST("/session/end", s.handleEndSession)
}

func (s *Server) handleIndicators(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.app.Indicators()); err != nil {
		return fmt.Errorf("failed to write indicators response: %w", err)
	}
	return nil
}

// handleChoropleth renders the map for ?indicator=&start=&end=. Omitted
// parameters fall back to the default selection.
func (s *Server) handleChoropleth(c echo.Context) error {
	req, err := s.parseFilterRequest(c)
	if err != nil {
		return err
	}

	view, err := s.app.Figure(c.Request().Context(), sessionID(c), req)
	if err != nil {
		return apperrors.FromDomain(err).
			WithField("indicator", req.Indicator).
			WithField("start", req.YearStart).
			WithField("end", req.YearEnd)
	}

	if err := c.JSON(http.StatusOK, view); err != nil {
		return fmt.Errorf("failed to write choropleth response: %w", err)
	}
	return nil
}

func (s *Server) handleRefresh(c echo.Context) error {
	result := s.app.Refresh(c.Request().Context(), sessionID(c))

	if err := c.JSON(http.StatusOK, result); err != nil {
		return fmt.Errorf("failed to write refresh response: %w", err)
	}
	return nil
}

func (s *Server) handleData(c echo.Context) error {
	view, err := s.app.Records(c.Request().Context(), sessionID(c))
	if err != nil {
		return apperrors.InternalError("failed to load session data", err)
	}

	if err := c.JSON(http.StatusOK, view); err != nil {
		return fmt.Errorf("failed to write data response: %w", err)
	}
	return nil
}

// handleEndSession drops the session's table, stops its periodic refresh and
// expires the cookie. The next request starts a fresh session.
func (s *Server) handleEndSession(c echo.Context) error {
	if err := s.app.EndSession(c.Request().Context(), sessionID(c)); err != nil {
		return apperrors.InternalError("failed to end session", err)
	}
	if err := s.endSession(c); err != nil {
		return apperrors.InternalError("failed to expire session cookie", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) parseFilterRequest(c echo.Context) (domain.FilterRequest, error) {
	req := s.app.DefaultRequest()

	if indicator := strings.TrimSpace(c.QueryParam("indicator")); indicator != "" {
		req.Indicator = indicator
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"start", &req.YearStart},
		{"end", &req.YearEnd},
	} {
		raw := strings.TrimSpace(c.QueryParam(p.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return domain.FilterRequest{}, apperrors.ValidationError(p.name + " must be a year").WithField(p.name, raw)
		}
		*p.dst = v
	}

	return req, nil
}
