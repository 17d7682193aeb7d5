package pricing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

func pricesOf(cs []watch.Candidate) []float64 {
	out := make([]float64, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Price)
	}
	return out
}

func TestJSONLDExtractor(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{"@type":"Product","name":"TV","offers":{"@type":"Offer","price":"459.990","priceCurrency":"CLP"}}</script>
<script type="APPLICATION/LD+JSON">[{"offers":[{"price":1200},{"price":"0"}]},{"price":true}]</script>
<script type="application/ld+json">{not json</script>
<script type="text/javascript">var x = {"price": "5"};</script>
</head></html>`

	got := JSONLDExtractor{}.Extract(NewMarkup(html))

	assert.Equal(t, []float64{459990, 1200}, pricesOf(got))
	for _, c := range got {
		assert.Equal(t, watch.SourceJSONLD, c.Source)
	}
}

func TestJSONLDExtractor_NumericPrices(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  []float64
	}{
		{"integer keeps digits", `100`, []float64{100}},
		{"fraction", `1234.5`, []float64{12345}},
		{"trailing zero dropped", `1234.50`, []float64{12345}},
		{"thousands-looking fraction", `19.990`, []float64{1999}},
		{"whole float keeps one decimal", `100.0`, []float64{1000}},
		{"exponent", `1e3`, []float64{10000}},
		{"large exponent", `1.5e16`, []float64{1.5e17}},
		{"zero", `0.0`, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := `<script type="application/ld+json">{"price": ` + tt.price + `}</script>`

			got := JSONLDExtractor{}.Extract(NewMarkup(html))

			// Dots are read as thousands separators, exactly like string prices.
			assert.Equal(t, tt.want, pricesOf(got))
		})
	}
}

func TestNumberText(t *testing.T) {
	tests := map[string]string{
		"100":      "100",
		"-7":       "-7",
		"1234.50":  "1234.5",
		"19.990":   "19.99",
		"100.0":    "100.0",
		"1e3":      "1000.0",
		"1E-5":     "1e-05",
		"0.0001":   "0.0001",
		"1e16":     "1e+16",
		"123456.7": "123456.7",
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, numberText(json.Number(in)))
		})
	}
}

func TestJSONLDExtractor_NestedPriceObjectIsTraversed(t *testing.T) {
	html := `<script type="application/ld+json">{"price": {"price": "10"}, "b": {"price": "30"}, "a": {"price": "20"}}</script>`

	got := JSONLDExtractor{}.Extract(NewMarkup(html))

	assert.Equal(t, []float64{20, 30, 10}, pricesOf(got))
}

func TestMetaExtractor(t *testing.T) {
	html := `<html><head>
<meta property="product:price:amount" content="19.990">
<meta property="og:price:amount" content="18,50">
<meta name="twitter:data1" content="$1,234">
<meta name="TWITTER:DATA1" content="7">
<meta property="og:title" content="999">
<meta property="product:price:amount">
</head></html>`

	got := MetaExtractor{}.Extract(NewMarkup(html))

	assert.Equal(t, []float64{19990, 18.5, 7}, pricesOf(got))
	for _, c := range got {
		assert.Equal(t, watch.SourceMeta, c.Source)
	}
}

func TestRegexExtractor(t *testing.T) {
	html := `<span>$ 12.990</span><b>CLP 25.000</b><i>usd 99,90</i><p>USD15</p><p>EUR 30</p><p>$abc</p>`

	got := RegexExtractor{}.Extract(NewMarkup(html))

	assert.Equal(t, []float64{12990, 25000, 99.9, 15}, pricesOf(got))
	for _, c := range got {
		assert.Equal(t, watch.SourceRegex, c.Source)
	}
}

func TestRegexExtractor_UnicodeSpaces(t *testing.T) {
	html := "<span>$\u00a01.990</span><b>CLP\u00a025.000</b><i>USD\u202f\u00a075</i><p>$4.500\u00a0</p><p>$1\u00a0990</p>"

	got := RegexExtractor{}.Extract(NewMarkup(html))

	// A no-break space inside the digits is not a separator, so the last
	// amount does not parse.
	assert.Equal(t, []float64{1990, 25000, 75, 4500}, pricesOf(got))
}

func TestExtractors_MalformedMarkup(t *testing.T) {
	m := NewMarkup(`<<<>>><script type="application/ld+json">`)

	for _, e := range DefaultExtractors() {
		assert.Empty(t, e.Extract(m), "extractor %s", e.Source())
	}
}
