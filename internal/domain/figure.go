package domain

// Figure is the choropleth configuration, shaped so the browser can hand
// it to Plotly unchanged.
type Figure struct {
	Data   []ChoroplethTrace `json:"data"`
	Layout Layout            `json:"layout"`
}

type ChoroplethTrace struct {
	Type          string    `json:"type"`
	LocationMode  string    `json:"locationmode"`
	Locations     []string  `json:"locations"`
	Z             []float64 `json:"z"`
	Text          []string  `json:"text"`
	HoverTemplate string    `json:"hovertemplate"`
	ColorScale    string    `json:"colorscale"`
	ColorBar      ColorBar  `json:"colorbar"`
}

type ColorBar struct {
	Title ColorBarTitle `json:"title"`
}

type ColorBarTitle struct {
	Text string `json:"text"`
}

type Layout struct {
	Geo    Geo    `json:"geo"`
	Margin Margin `json:"margin"`
}

type Geo struct {
	Scope      string     `json:"scope"`
	Projection Projection `json:"projection"`
	ShowFrame  bool       `json:"showframe"`
}

type Projection struct {
	Type string `json:"type"`
}

type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}
