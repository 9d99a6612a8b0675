package render

import (
	"testing"

	"github.com/pscheid92/wbdash/internal/domain"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoropleth(t *testing.T) {
	indicator, _ := domain.DefaultIndicators().ByCode(domain.IndicatorInternetUsers)
	points := []domain.Point{
		{ISO3Code: "DEU", Country: "Germany", Value: 70},
		{ISO3Code: "USA", Country: "United States", Value: 61},
	}

	fig := Choropleth(points, indicator)

	require.Len(t, fig.Data, 1)
	trace := fig.Data[0]
	assert.Equal(t, "choropleth", trace.Type)
	assert.Equal(t, "ISO-3", trace.LocationMode)
	assert.Equal(t, []string{"DEU", "USA"}, trace.Locations)
	assert.Equal(t, []float64{70, 61}, trace.Z)
	assert.Equal(t, []string{"Germany", "United States"}, trace.Text)
	assert.Equal(t, "%{text}<extra></extra>", trace.HoverTemplate)
	assert.Equal(t, "pop % using internet", trace.ColorBar.Title.Text)

	assert.Equal(t, "world", fig.Layout.Geo.Scope)
	assert.Equal(t, "natural earth", fig.Layout.Geo.Projection.Type)
	assert.Equal(t, domain.Margin{L: 50, R: 50, T: 50, B: 50}, fig.Layout.Margin)
}

func TestChoropleth_NoPoints(t *testing.T) {
	fig := Choropleth(nil, domain.Indicator{Label: "Unlabelled"})

	require.Len(t, fig.Data, 1)
	assert.Empty(t, fig.Data[0].Locations)
	assert.Equal(t, "Unlabelled", fig.Data[0].ColorBar.Title.Text)

	// Empty arrays, not null, so Plotly draws a blank map.
	b, err := json.Marshal(fig)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"locations":[]`)
	assert.Contains(t, string(b), `"z":[]`)
}

func TestChoropleth_IsPure(t *testing.T) {
	indicator := domain.DefaultIndicators()[1]
	points := []domain.Point{{ISO3Code: "USA", Country: "United States", Value: 19.4}}

	assert.Equal(t, Choropleth(points, indicator), Choropleth(points, indicator))
	assert.Equal(t, []domain.Point{{ISO3Code: "USA", Country: "United States", Value: 19.4}}, points)
}
