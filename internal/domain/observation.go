package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/segmentio/encoding/json"
)

// Flat record keys shared by the session storage format and the data API.
const (
	RecordKeyISO3    = "iso3c"
	RecordKeyCountry = "country"
	RecordKeyYear    = "year"
)

// RawObservation is one long-format upstream row: a single indicator value
// for one country and year. Value is nil when the upstream reports no data.
type RawObservation struct {
	IndicatorCode string
	ISO3Code      string
	CountryName   string
	Year          int
	Value         *float64
}

// Observation is one wide-format row per (country, year). Values is keyed by
// indicator label; a nil entry means the indicator has no value for that year.
type Observation struct {
	ISO3Code string
	Country  string
	Year     int
	Values   map[string]*float64
}

// Value returns the non-null value of the given indicator label.
func (o Observation) Value(label string) (float64, bool) {
	v, ok := o.Values[label]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Table is the ObservationTable cached per session. A published Table is never
// mutated; refreshes replace it wholesale.
type Table struct {
	FetchedAt  time.Time
	Indicators []string
	Rows       []Observation
}

// Len returns the number of rows; a nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasIndicator reports whether the table carries a column for label.
func (t *Table) HasIndicator(label string) bool {
	if t == nil {
		return false
	}
	return slices.Contains(t.Indicators, label)
}

// Records flattens the table to one map per country-year, the shape used for
// session storage.
func (t *Table) Records() []map[string]any {
	if t == nil {
		return []map[string]any{}
	}

	records := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Indicators)+3)
		rec[RecordKeyISO3] = row.ISO3Code
		rec[RecordKeyCountry] = row.Country
		rec[RecordKeyYear] = row.Year
		for _, label := range t.Indicators {
			if v, ok := row.Value(label); ok {
				rec[label] = v
			} else {
				rec[label] = nil
			}
		}
		records = append(records, rec)
	}
	return records
}

// TableFromRecords rebuilds a table from flat records. Keys other than the
// three fixed ones are read only when listed in indicators.
func TableFromRecords(fetchedAt time.Time, indicators []string, records []map[string]any) (*Table, error) {
	rows := make([]Observation, 0, len(records))
	for i, rec := range records {
		iso3, _ := rec[RecordKeyISO3].(string)
		country, _ := rec[RecordKeyCountry].(string)
		if iso3 == "" {
			return nil, fmt.Errorf("record %d: missing %s", i, RecordKeyISO3)
		}

		year, err := recordInt(rec[RecordKeyYear])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		values := make(map[string]*float64, len(indicators))
		for _, label := range indicators {
			values[label] = nil
			switch v := rec[label].(type) {
			case nil:
			case float64:
				values[label] = &v
			case json.Number:
				f, err := v.Float64()
				if err != nil {
					return nil, fmt.Errorf("record %d: %s: %w", i, label, err)
				}
				values[label] = &f
			default:
				return nil, fmt.Errorf("record %d: %s: unexpected type %T", i, label, v)
			}
		}

		rows = append(rows, Observation{ISO3Code: iso3, Country: country, Year: year, Values: values})
	}

	return &Table{FetchedAt: fetchedAt, Indicators: slices.Clone(indicators), Rows: rows}, nil
}

func recordInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%s %v is not an integer", RecordKeyYear, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", RecordKeyYear, err)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("%s has unexpected type %T", RecordKeyYear, v)
	}
}

type tableJSON struct {
	FetchedAt  time.Time        `json:"fetched_at"`
	Indicators []string         `json:"indicators"`
	Records    []map[string]any `json:"records"`
}

func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{
		FetchedAt:  t.FetchedAt,
		Indicators: t.Indicators,
		Records:    t.Records(),
	})
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var raw tableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode table: %w", err)
	}

	decoded, err := TableFromRecords(raw.FetchedAt, raw.Indicators, raw.Records)
	if err != nil {
		return fmt.Errorf("failed to decode table: %w", err)
	}

	*t = *decoded
	return nil
}
