// Package catalog provides the CountryCatalog: the upstream country reference
// list reduced to entities that can be placed on the map.
package catalog

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wbdash/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DefaultExclusions are the two entries with a disputed political status
// that never appear on the map.
var DefaultExclusions = []string{"Kosovo", "Korea, Dem. People's Rep."}

// CountrySource supplies the unfiltered country reference list.
type CountrySource interface {
	Countries(ctx context.Context) ([]domain.CountryRecord, error)
}

// FilterCountries drops aggregates (no capital city) and excluded names,
// keeps the first entry per iso3 code and sorts by iso3 code.
func FilterCountries(records []domain.CountryRecord, excluded []string) []domain.Country {
	seen := make(map[string]struct{}, len(records))
	countries := make([]domain.Country, 0, len(records))

	for _, rec := range records {
		iso3 := strings.ToUpper(strings.TrimSpace(rec.ISO3Code))
		name := strings.TrimSpace(rec.Name)

		if strings.TrimSpace(rec.CapitalCity) == "" {
			continue
		}
		if slices.Contains(excluded, name) {
			continue
		}
		if len(iso3) != 3 {
			continue
		}
		if _, dup := seen[iso3]; dup {
			continue
		}

		seen[iso3] = struct{}{}
		countries = append(countries, domain.Country{Name: name, ISO3Code: iso3})
	}

	slices.SortFunc(countries, func(a, b domain.Country) int {
		return cmp.Compare(a.ISO3Code, b.ISO3Code)
	})
	return countries
}

// CacheObserver is notified whether a lookup was served from cache.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

type noopObserver struct{}

func (noopObserver) CacheHit()  {}
func (noopObserver) CacheMiss() {}

type Option func(*Countries)

// WithObserver reports cache hits and misses.
func WithObserver(o CacheObserver) Option {
	return func(c *Countries) { c.observer = o }
}

// Countries implements domain.CountryCatalog. The filtered list is cached for
// ttl; concurrent misses share a single upstream call.
type Countries struct {
	source   CountrySource
	excluded []string
	ttl      time.Duration
	clock    clockwork.Clock
	observer CacheObserver

	group singleflight.Group

	mu        sync.RWMutex
	cached    []domain.Country
	expiresAt time.Time
}

var _ domain.CountryCatalog = (*Countries)(nil)

func NewCountries(source CountrySource, ttl time.Duration, clock clockwork.Clock, opts ...Option) *Countries {
	c := &Countries{
		source:   source,
		excluded: DefaultExclusions,
		ttl:      ttl,
		clock:    clock,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListCountries returns the valid countries. Upstream failures are reported
// as *domain.FetchError; a previously cached list is not served past its TTL.
func (c *Countries) ListCountries(ctx context.Context) ([]domain.Country, error) {
	c.mu.RLock()
	if c.cached != nil && c.clock.Now().Before(c.expiresAt) {
		countries := c.cached
		c.mu.RUnlock()
		c.observer.CacheHit()
		return slices.Clone(countries), nil
	}
	c.mu.RUnlock()
	c.observer.CacheMiss()

	v, err, _ := c.group.Do("countries", func() (any, error) {
		records, err := c.source.Countries(ctx)
		if err != nil {
			return nil, &domain.FetchError{Op: "countries", Err: err}
		}

		countries := FilterCountries(records, c.excluded)
		if len(countries) == 0 {
			return nil, &domain.FetchError{Op: "countries", Err: domain.ErrEmptyResult}
		}

		c.mu.Lock()
		c.cached = countries
		c.expiresAt = c.clock.Now().Add(c.ttl)
		c.mu.Unlock()

		slog.DebugContext(ctx, "Country catalog loaded", "countries", len(countries), "upstream_records", len(records))
		return countries, nil
	})
	if err != nil {
		return nil, err
	}

	return slices.Clone(v.([]domain.Country)), nil
}

// Invalidate forces the next ListCountries call to reload.
func (c *Countries) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
