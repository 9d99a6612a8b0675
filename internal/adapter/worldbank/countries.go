package worldbank

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pscheid92/wbdash/internal/domain"
	"github.com/segmentio/encoding/json"
)

type idValue struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type countryRow struct {
	ID          string  `json:"id"`
	ISO2Code    string  `json:"iso2Code"`
	Name        string  `json:"name"`
	Region      idValue `json:"region"`
	CapitalCity string  `json:"capitalCity"`
}

// Countries returns the full, unfiltered country reference list, including
// regional aggregates (which have no capital city).
func (c *Client) Countries(ctx context.Context) ([]domain.CountryRecord, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(countriesPerPage))

	var records []domain.CountryRecord
	err := c.forEachRow(ctx, EndpointCountries, "/country", query, func(raw json.RawMessage) error {
		var row countryRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return fmt.Errorf("%w: invalid country row: %v", ErrMalformedResponse, err)
		}
		records = append(records, domain.CountryRecord{
			ISO3Code:    strings.TrimSpace(row.ID),
			Name:        strings.TrimSpace(row.Name),
			CapitalCity: strings.TrimSpace(row.CapitalCity),
			Region:      strings.TrimSpace(row.Region.Value),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}
