package pricing

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jingkaihe/pricewatch/pkg/fetch"
	"github.com/jingkaihe/pricewatch/pkg/logger"
	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

const (
	// UnknownTitle is reported for pages without a <title> element.
	UnknownTitle = "(unknown title)"

	maxTitleRunes   = 220
	maxDebugEntries = 25
)

// Debug is the candidate trail returned with every parse.
type Debug struct {
	Source     watch.Source      `json:"source,omitempty"`
	Candidates []watch.Candidate `json:"candidates"`
}

// MarshalJSON writes {"sources": []} for a page that yielded no candidates.
func (d Debug) MarshalJSON() ([]byte, error) {
	if d.Source == "" && len(d.Candidates) == 0 {
		return []byte(`{"sources":[]}`), nil
	}
	type plain Debug
	return json.Marshal(plain(d))
}

// Product is the outcome of parsing one product page. Price is nil when no
// extractor found anything.
type Product struct {
	Title string   `json:"title"`
	Price *float64 `json:"price"`
	Debug Debug    `json:"debug"`
}

// PageFetcher downloads HTML pages.
type PageFetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Parser fetches product pages and selects a price from them.
type Parser struct {
	fetcher    PageFetcher
	extractors []Extractor
}

// NewParser returns a parser using the default extractors.
func NewParser(fetcher PageFetcher) *Parser {
	return &Parser{fetcher: fetcher, extractors: DefaultExtractors()}
}

// Parse downloads rawURL and extracts title and price. Only fetch failures
// are returned as errors.
func (p *Parser) Parse(ctx context.Context, rawURL string) (*Product, error) {
	page, err := p.fetcher.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	logger.G(ctx).WithField("url", rawURL).
		WithField("status", page.StatusCode).
		WithField("content_type", page.ContentType).
		WithField("bytes", len(page.HTML)).
		Debug("fetched product page")
	return p.ParseHTML(page.HTML), nil
}

// ParseHTML runs every extractor over html and keeps the lowest price. The
// lowest price wins regardless of which strategy produced it; on ties the
// earliest candidate is kept.
func (p *Parser) ParseHTML(html string) *Product {
	m := NewMarkup(html)
	product := &Product{
		Title: Title(m),
		Debug: Debug{Candidates: []watch.Candidate{}},
	}

	var candidates []watch.Candidate
	for _, e := range p.extractors {
		candidates = append(candidates, e.Extract(m)...)
	}
	if len(candidates) == 0 {
		return product
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Price < best.Price {
			best = c
		}
	}
	price := best.Price
	product.Price = &price
	product.Debug.Source = best.Source

	if len(candidates) > maxDebugEntries {
		candidates = candidates[:maxDebugEntries]
	}
	product.Debug.Candidates = candidates
	return product
}

// Title returns the first <title> with whitespace collapsed, cut to 220
// characters.
func Title(m *Markup) string {
	sel := m.Doc.Find("title").First()
	if sel.Length() == 0 {
		return UnknownTitle
	}
	title := strings.Join(strings.Fields(sel.Text()), " ")
	if r := []rune(title); len(r) > maxTitleRunes {
		title = string(r[:maxTitleRunes])
	}
	return title
}
