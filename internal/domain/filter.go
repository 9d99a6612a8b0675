package domain

import "fmt"

// Year bounds of the fetched span and of the year range selector.
const (
	MinYear = 2005
	MaxYear = 2016
)

// FilterRequest selects an indicator and an inclusive year range.
// YearStart == YearEnd selects a single year's raw values instead of a mean.
type FilterRequest struct {
	Indicator string `json:"indicator"`
	YearStart int    `json:"start"`
	YearEnd   int    `json:"end"`
}

// DefaultFilterRequest is the selection shown on first page load.
func DefaultFilterRequest(catalog IndicatorCatalog) FilterRequest {
	req := FilterRequest{YearStart: MinYear, YearEnd: MinYear + 1}
	if len(catalog) > 0 {
		req.Indicator = catalog[0].Label
	}
	return req
}

// ExactYear reports whether the request selects a single year.
func (r FilterRequest) ExactYear() bool {
	return r.YearStart == r.YearEnd
}

// Validate confines the indicator to the catalog and the years to [MinYear, MaxYear]
// with YearStart <= YearEnd.
func (r FilterRequest) Validate(catalog IndicatorCatalog) error {
	if _, ok := catalog.ByLabel(r.Indicator); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownIndicator, r.Indicator)
	}
	if r.YearStart < MinYear || r.YearEnd > MaxYear {
		return fmt.Errorf("%w: years must be within [%d, %d]", ErrInvalidYearRange, MinYear, MaxYear)
	}
	if r.YearStart > r.YearEnd {
		return fmt.Errorf("%w: start %d is after end %d", ErrInvalidYearRange, r.YearStart, r.YearEnd)
	}
	return nil
}

// Point is one aggregated map value.
type Point struct {
	ISO3Code string  `json:"iso3c"`
	Country  string  `json:"country"`
	Value    float64 `json:"value"`
}
