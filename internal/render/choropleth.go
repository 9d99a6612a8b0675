// Package render builds Plotly figure descriptions for the dashboard map.
package render

import "github.com/pscheid92/wbdash/internal/domain"

// The hover template shows the country name only; <extra></extra> suppresses
// Plotly's secondary trace box.
const (
	traceType        = "choropleth"
	locationModeISO3 = "ISO-3"
	hoverTemplate    = "%{text}<extra></extra>"
	colorScale       = "Viridis"
	geoScope         = "world"
	projectionType   = "natural earth"
	outerMargin      = 50
)

// Choropleth maps each point to a colored region. Countries without a point
// are left unfilled by Plotly. The color bar carries the indicator's legend title.
func Choropleth(points []domain.Point, indicator domain.Indicator) domain.Figure {
	locations := make([]string, len(points))
	z := make([]float64, len(points))
	text := make([]string, len(points))
	for i, p := range points {
		locations[i] = p.ISO3Code
		z[i] = p.Value
		text[i] = p.Country
	}

	title := indicator.Legend
	if title == "" {
		title = indicator.Label
	}

	return domain.Figure{
		Data: []domain.ChoroplethTrace{{
			Type:          traceType,
			LocationMode:  locationModeISO3,
			Locations:     locations,
			Z:             z,
			Text:          text,
			HoverTemplate: hoverTemplate,
			ColorScale:    colorScale,
			ColorBar:      domain.ColorBar{Title: domain.ColorBarTitle{Text: title}},
		}},
		Layout: domain.Layout{
			Geo: domain.Geo{
				Scope:      geoScope,
				Projection: domain.Projection{Type: projectionType},
				ShowFrame:  false,
			},
			Margin: domain.Margin{L: outerMargin, R: outerMargin, T: outerMargin, B: outerMargin},
		},
	}
}
