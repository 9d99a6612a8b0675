package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pscheid92/wbdash/internal/dataset"
	"github.com/pscheid92/wbdash/internal/domain"
	"github.com/pscheid92/wbdash/internal/render"
)

// SessionRefresher is the part of the Refresher the Service drives.
type SessionRefresher interface {
	Track(sessionID string)
	RefreshSession(ctx context.Context, sessionID, trigger string) (domain.RefreshOutcome, error)
	Forget(ctx context.Context, sessionID string) error
}

// FigureView is the rendered map for one filter request.
type FigureView struct {
	Request   domain.FilterRequest `json:"request"`
	Figure    domain.Figure        `json:"figure"`
	FetchedAt *time.Time           `json:"fetched_at"`
	Rows      int                  `json:"rows"`
	Points    int                  `json:"points"`
}

// RefreshResult reports what a manual refresh did. A failed fetch is not an
// error: the session keeps showing its previous table.
type RefreshResult struct {
	Outcome   domain.RefreshOutcome `json:"outcome"`
	FetchedAt *time.Time            `json:"fetched_at"`
	Rows      int                   `json:"rows"`
	Message   string                `json:"message,omitempty"`
}

// TableView is the session's table as flat records.
type TableView struct {
	FetchedAt  *time.Time       `json:"fetched_at"`
	Indicators []string         `json:"indicators"`
	Records    []map[string]any `json:"records"`
}

// Service is the application layer. Each method handles one UI event:
// a filter change renders the figure, the refresh control refreshes the
// session's table. Data-layer failures degrade to stale or empty output.
type Service struct {
	refresher  SessionRefresher
	store      domain.TableStore
	indicators domain.IndicatorCatalog
}

func NewService(refresher SessionRefresher, store domain.TableStore, indicators domain.IndicatorCatalog) *Service {
	return &Service{
		refresher:  refresher,
		store:      store,
		indicators: indicators,
	}
}

// Indicators returns the indicator catalog.
func (s *Service) Indicators() domain.IndicatorCatalog {
	return s.indicators
}

// DefaultRequest is the selection shown on first page load.
func (s *Service) DefaultRequest() domain.FilterRequest {
	return domain.DefaultFilterRequest(s.indicators)
}

// Figure renders the choropleth for the session's cached table. An invalid
// request is rejected with a validation error before any data is touched. A
// session without a table gets one synchronous refresh first.
func (s *Service) Figure(ctx context.Context, sessionID string, req domain.FilterRequest) (FigureView, error) {
	if err := req.Validate(s.indicators); err != nil {
		return FigureView{}, err
	}
	indicator, _ := s.indicators.ByLabel(req.Indicator)

	table := s.loadOrRefresh(ctx, sessionID)

	points, err := dataset.Apply(table, req)
	if err != nil {
		slog.WarnContext(ctx, "Filter failed, rendering empty map", "session_id", sessionID, "indicator", req.Indicator, "error", err)
		points = nil
	}

	view := FigureView{
		Request: req,
		Figure:  render.Choropleth(points, indicator),
		Rows:    table.Len(),
		Points:  len(points),
	}
	if table != nil {
		view.FetchedAt = &table.FetchedAt
	}
	return view, nil
}

// Refresh runs the manual refresh trigger for the session.
func (s *Service) Refresh(ctx context.Context, sessionID string) RefreshResult {
	outcome, err := s.refresher.RefreshSession(ctx, sessionID, TriggerManual)

	result := RefreshResult{Outcome: outcome}
	if err != nil {
		result.Message = "refresh failed, showing previously fetched data"
	}

	table, loadErr := s.store.Load(ctx, sessionID)
	if loadErr == nil {
		result.FetchedAt = &table.FetchedAt
		result.Rows = table.Len()
	}
	return result
}

// Records returns the session's table as flat records; an unknown session
// has none.
func (s *Service) Records(ctx context.Context, sessionID string) (TableView, error) {
	s.refresher.Track(sessionID)

	table, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return TableView{Indicators: s.indicators.Labels(), Records: []map[string]any{}}, nil
	}
	if err != nil {
		return TableView{}, err
	}

	return TableView{
		FetchedAt:  &table.FetchedAt,
		Indicators: table.Indicators,
		Records:    table.Records(),
	}, nil
}

// EndSession stops refreshing the session and clears its table.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	return s.refresher.Forget(ctx, sessionID)
}

func (s *Service) loadOrRefresh(ctx context.Context, sessionID string) *domain.Table {
	s.refresher.Track(sessionID)

	table, err := s.store.Load(ctx, sessionID)
	if err == nil {
		return table
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		slog.ErrorContext(ctx, "Failed to load session table", "session_id", sessionID, "error", err)
		return nil
	}

	// Failures are logged by the refresher; the map stays empty until a later refresh succeeds.
	if outcome, _ := s.refresher.RefreshSession(ctx, sessionID, TriggerInitial); outcome != domain.RefreshOutcomeRefreshed {
		return nil
	}

	table, err = s.store.Load(ctx, sessionID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load session table after refresh", "session_id", sessionID, "error", err)
		return nil
	}
	return table
}
