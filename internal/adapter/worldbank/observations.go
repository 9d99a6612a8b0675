package worldbank

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pscheid92/wbdash/internal/domain"
	"github.com/segmentio/encoding/json"
)

type observationRow struct {
	Indicator       idValue  `json:"indicator"`
	Country         idValue  `json:"country"`
	CountryISO3Code string   `json:"countryiso3code"`
	Date            string   `json:"date"`
	Value           *float64 `json:"value"`
}

// Observations issues one batched request for every indicator × country over
// [start, end] and returns the long-format rows. Missing values stay nil.
func (c *Client) Observations(ctx context.Context, indicatorCodes, iso3Codes []string, start, end int) ([]domain.RawObservation, error) {
	if len(indicatorCodes) == 0 || len(iso3Codes) == 0 {
		return nil, errors.New("at least one indicator and one country are required")
	}
	if start > end {
		return nil, fmt.Errorf("start year %d is after end year %d", start, end)
	}

	path := "/country/" + strings.Join(iso3Codes, ";") + "/indicator/" + strings.Join(indicatorCodes, ";")

	query := url.Values{}
	query.Set("date", fmt.Sprintf("%d:%d", start, end))
	query.Set("per_page", strconv.Itoa(observationsPerPage))
	if len(indicatorCodes) > 1 {
		query.Set("source", wdiSourceID)
	}

	var out []domain.RawObservation
	err := c.forEachRow(ctx, EndpointObservations, path, query, func(raw json.RawMessage) error {
		var row observationRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return fmt.Errorf("%w: invalid observation row: %v", ErrMalformedResponse, err)
		}

		year, err := strconv.Atoi(strings.TrimSpace(row.Date))
		if err != nil {
			return fmt.Errorf("%w: non-integer year %q for %s", ErrMalformedResponse, row.Date, row.CountryISO3Code)
		}

		out = append(out, domain.RawObservation{
			IndicatorCode: row.Indicator.ID,
			ISO3Code:      strings.TrimSpace(row.CountryISO3Code),
			CountryName:   row.Country.Value,
			Year:          year,
			Value:         row.Value,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
