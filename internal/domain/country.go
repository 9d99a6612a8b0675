package domain

import "context"

// Country is a valid map entity: it has a capital city and is not excluded.
type Country struct {
	Name     string `json:"country"`
	ISO3Code string `json:"iso3c"`
}

// CountryRecord is one entry of the upstream country reference list, before filtering.
type CountryRecord struct {
	ISO3Code    string
	Name        string
	CapitalCity string
	Region      string
}

// CountryCatalog lists the countries eligible for fetching and display.
// Invalidate drops any cached list so the next call reloads it.
type CountryCatalog interface {
	ListCountries(ctx context.Context) ([]Country, error)
	Invalidate()
}
