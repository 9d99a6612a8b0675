// Package dataset turns upstream indicator rows into the cached observation
// table and reduces that table to map points.
package dataset

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wbdash/internal/domain"
)

// ObservationSource issues the batched indicator query.
type ObservationSource interface {
	Observations(ctx context.Context, indicatorCodes, iso3Codes []string, start, end int) ([]domain.RawObservation, error)
}

type rowKey struct {
	iso3 string
	year int
}

// FetchObservations queries every indicator × country × year in [start, end]
// with a single request and returns the wide-format table. Rows for countries
// outside the given list are dropped. An upstream error or an empty result is
// reported as *domain.FetchError.
func FetchObservations(ctx context.Context, source ObservationSource, indicators domain.IndicatorCatalog, countries []domain.Country, start, end int, fetchedAt time.Time) (*domain.Table, error) {
	iso3Codes := make([]string, len(countries))
	for i, c := range countries {
		iso3Codes[i] = c.ISO3Code
	}

	raw, err := source.Observations(ctx, indicators.Codes(), iso3Codes, start, end)
	if err != nil {
		return nil, &domain.FetchError{Op: "observations", Err: err}
	}
	if len(raw) == 0 {
		return nil, &domain.FetchError{Op: "observations", Err: domain.ErrEmptyResult}
	}

	table := join(pivot(raw, start, end), indicators, countries)
	table.FetchedAt = fetchedAt
	if table.Len() == 0 {
		return nil, &domain.FetchError{Op: "observations", Err: fmt.Errorf("%w: %w", domain.ErrEmptyResult, domain.ErrCatalogMismatch)}
	}
	return table, nil
}

// pivot folds long-format rows into one row per (iso3, year), keyed by
// indicator code. Years outside [start, end] are discarded. A repeated
// (iso3, year, code) keeps the first non-null value.
func pivot(raw []domain.RawObservation, start, end int) map[rowKey]map[string]*float64 {
	wide := make(map[rowKey]map[string]*float64)
	for _, r := range raw {
		if r.Year < start || r.Year > end || r.ISO3Code == "" {
			continue
		}
		key := rowKey{iso3: r.ISO3Code, year: r.Year}
		values, ok := wide[key]
		if !ok {
			values = make(map[string]*float64)
			wide[key] = values
		}
		if existing, ok := values[r.IndicatorCode]; ok && existing != nil {
			continue
		}
		values[r.IndicatorCode] = r.Value
	}
	return wide
}

// join inner-joins pivoted rows with the country list on iso3 and renames
// indicator codes to labels. Every row carries every label; absent ones are nil.
func join(wide map[rowKey]map[string]*float64, indicators domain.IndicatorCatalog, countries []domain.Country) *domain.Table {
	names := make(map[string]string, len(countries))
	for _, c := range countries {
		names[c.ISO3Code] = c.Name
	}

	table := &domain.Table{Indicators: indicators.Labels()}
	for key, byCode := range wide {
		name, ok := names[key.iso3]
		if !ok {
			continue
		}

		values := make(map[string]*float64, len(indicators))
		for _, ind := range indicators {
			values[ind.Label] = byCode[ind.Code]
		}
		table.Rows = append(table.Rows, domain.Observation{
			ISO3Code: key.iso3,
			Country:  name,
			Year:     key.year,
			Values:   values,
		})
	}

	slices.SortFunc(table.Rows, func(a, b domain.Observation) int {
		return cmp.Or(cmp.Compare(a.ISO3Code, b.ISO3Code), cmp.Compare(a.Year, b.Year))
	})
	return table
}

// Fetcher runs the fixed refresh query: the default indicators for every
// catalog country over [domain.MinYear, domain.MaxYear].
type Fetcher struct {
	source     ObservationSource
	countries  domain.CountryCatalog
	indicators domain.IndicatorCatalog
	timeout    time.Duration
	clock      clockwork.Clock
}

func NewFetcher(source ObservationSource, countries domain.CountryCatalog, indicators domain.IndicatorCatalog, timeout time.Duration, clock clockwork.Clock) *Fetcher {
	return &Fetcher{
		source:     source,
		countries:  countries,
		indicators: indicators,
		timeout:    timeout,
		clock:      clock,
	}
}

// Fetch loads the country catalog and the observations, bounded by the
// configured timeout. Every failure is a *domain.FetchError.
func (f *Fetcher) Fetch(ctx context.Context) (*domain.Table, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	countries, err := f.countries.ListCountries(ctx)
	if err != nil {
		if domain.IsFetchError(err) {
			return nil, err
		}
		return nil, &domain.FetchError{Op: "countries", Err: err}
	}

	start := f.clock.Now()
	table, err := FetchObservations(ctx, f.source, f.indicators, countries, domain.MinYear, domain.MaxYear, start.UTC())
	if errors.Is(err, domain.ErrCatalogMismatch) {
		// Upstream answered, but none of its countries are in our list: the list is stale.
		slog.WarnContext(ctx, "Observations did not match the country catalog, reloading it on next fetch", "countries", len(countries))
		f.countries.Invalidate()
	}
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Observations fetched",
		"rows", table.Len(),
		"countries", len(countries),
		"duration", f.clock.Now().Sub(start),
	)
	return table, nil
}
