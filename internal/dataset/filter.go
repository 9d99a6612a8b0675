package dataset

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/pscheid92/wbdash/internal/domain"
)

// Apply reduces the table to one point per country for the requested
// indicator. With YearStart == YearEnd it returns that year's raw values;
// otherwise the mean of the non-null values in [YearStart, YearEnd]. Countries
// without any non-null value are left out. An empty table yields no points;
// a populated table lacking the indicator yields domain.ErrIndicatorNotCached.
func Apply(table *domain.Table, req domain.FilterRequest) ([]domain.Point, error) {
	if table.Len() == 0 {
		return []domain.Point{}, nil
	}
	if !table.HasIndicator(req.Indicator) {
		return nil, fmt.Errorf("%w: %q", domain.ErrIndicatorNotCached, req.Indicator)
	}

	var points []domain.Point
	if req.ExactYear() {
		points = exactYear(table, req.Indicator, req.YearStart)
	} else {
		points = rangeMean(table, req.Indicator, req.YearStart, req.YearEnd)
	}

	slices.SortFunc(points, func(a, b domain.Point) int {
		return cmp.Compare(a.ISO3Code, b.ISO3Code)
	})
	return points, nil
}

func exactYear(table *domain.Table, label string, year int) []domain.Point {
	points := []domain.Point{}
	for _, row := range table.Rows {
		if row.Year != year {
			continue
		}
		if v, ok := row.Value(label); ok {
			points = append(points, domain.Point{ISO3Code: row.ISO3Code, Country: row.Country, Value: v})
		}
	}
	return points
}

type group struct {
	iso3    string
	country string
}

type accumulator struct {
	sum   float64
	count int
}

func rangeMean(table *domain.Table, label string, start, end int) []domain.Point {
	acc := make(map[group]*accumulator)
	for _, row := range table.Rows {
		if row.Year < start || row.Year > end {
			continue
		}
		v, ok := row.Value(label)
		if !ok {
			continue
		}
		g := group{iso3: row.ISO3Code, country: row.Country}
		a, ok := acc[g]
		if !ok {
			a = &accumulator{}
			acc[g] = a
		}
		a.sum += v
		a.count++
	}

	points := make([]domain.Point, 0, len(acc))
	for g, a := range acc {
		points = append(points, domain.Point{ISO3Code: g.iso3, Country: g.country, Value: a.sum / float64(a.count)})
	}
	return points
}
