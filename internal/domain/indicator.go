package domain

// Indicator is a named statistical series identified by its World Bank code.
type Indicator struct {
	Code   string `json:"code"`
	Label  string `json:"label"`
	Legend string `json:"legend"` // shorter title used on the map's color bar
}

const (
	IndicatorInternetUsers   = "IT.NET.USER.ZS"
	IndicatorWomenParliament = "SG.GEN.PARL.ZS"
	IndicatorTransportCO2    = "EN.GHG.CO2.TR.MT.CE.AR5"
)

const (
	labelInternetUsers      = "Individuals using the Internet (% of population)"
	labelWomenInParliament  = "Proportion of seats held by women in national parliaments (%)"
	labelTransportCO2       = "CO2 emissions (kt)"
	legendInternetUsers     = "pop % using internet"
	legendWomenInParliament = "% parliament women"
)

// IndicatorCatalog is the fixed, ordered set of indicators known at startup.
type IndicatorCatalog []Indicator

// DefaultIndicators returns the three indicators the dashboard works with.
func DefaultIndicators() IndicatorCatalog {
	return IndicatorCatalog{
		{Code: IndicatorInternetUsers, Label: labelInternetUsers, Legend: legendInternetUsers},
		{Code: IndicatorWomenParliament, Label: labelWomenInParliament, Legend: legendWomenInParliament},
		// The CO2 label is already short enough for the color bar.
		{Code: IndicatorTransportCO2, Label: labelTransportCO2, Legend: labelTransportCO2},
	}
}

// Codes returns the indicator codes in catalog order.
func (c IndicatorCatalog) Codes() []string {
	codes := make([]string, len(c))
	for i, ind := range c {
		codes[i] = ind.Code
	}
	return codes
}

// Labels returns the human-readable labels in catalog order.
func (c IndicatorCatalog) Labels() []string {
	labels := make([]string, len(c))
	for i, ind := range c {
		labels[i] = ind.Label
	}
	return labels
}

// ByCode looks up an indicator by its upstream code.
func (c IndicatorCatalog) ByCode(code string) (Indicator, bool) {
	for _, ind := range c {
		if ind.Code == code {
			return ind, true
		}
	}
	return Indicator{}, false
}

// ByLabel looks up an indicator by its human-readable label.
func (c IndicatorCatalog) ByLabel(label string) (Indicator, bool) {
	for _, ind := range c {
		if ind.Label == label {
			return ind, true
		}
	}
	return Indicator{}, false
}
