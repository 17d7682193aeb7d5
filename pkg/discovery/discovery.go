// Package discovery finds product URLs for a free-text query by scraping a
// search engine's HTML results page.
package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/pricewatch/pkg/fetch"
	"github.com/jingkaihe/pricewatch/pkg/logger"
	"github.com/jingkaihe/pricewatch/pkg/telemetry"
)

// DefaultEndpoint is the DuckDuckGo HTML-only results page.
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

const resultLinkSelector = `a[class*="result__a"]`

// ErrInvalidRequest is returned for an empty query or a non-positive result
// limit.
var ErrInvalidRequest = errors.New("invalid discovery request")

// PageFetcher downloads HTML pages.
type PageFetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Engine runs discovery queries.
type Engine struct {
	fetcher  PageFetcher
	endpoint string
	trusted  *DomainList
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEndpoint overrides the search results URL.
func WithEndpoint(endpoint string) Option {
	return func(e *Engine) {
		if endpoint != "" {
			e.endpoint = endpoint
		}
	}
}

// WithTrustedDomains replaces the trusted-only allow-list.
func WithTrustedDomains(domains []string) Option {
	return func(e *Engine) {
		if len(domains) > 0 {
			e.trusted = NewDomainList(domains)
		}
	}
}

// NewEngine creates an Engine that fetches search results with fetcher.
func NewEngine(fetcher PageFetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:  fetcher,
		endpoint: DefaultEndpoint,
		trusted:  NewDomainList(DefaultTrustedDomains),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Trusted returns the allow-list used when trustedOnly is set.
func (e *Engine) Trusted() *DomainList {
	return e.trusted
}

// SearchURL returns the results page URL for query.
func (e *Engine) SearchURL(query string) string {
	sep := "?"
	if strings.Contains(e.endpoint, "?") {
		sep = "&"
	}
	return e.endpoint + sep + "q=" + url.QueryEscape(query)
}

// Discover returns up to maxResults distinct product URLs for query, in
// results-page order. Fetch failures of the results page are returned as is.
func (e *Engine) Discover(ctx context.Context, query string, trustedOnly bool, maxResults int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "query is required")
	}
	if maxResults < 1 {
		return nil, errors.Wrapf(ErrInvalidRequest, "max results must be at least 1, got %d", maxResults)
	}

	var urls []string
	err := telemetry.WithSpan(ctx, "discovery.discover", func(ctx context.Context) error {
		page, err := e.fetcher.Get(ctx, e.SearchURL(query))
		if err != nil {
			return err
		}
		urls = e.collect(ctx, page.HTML, trustedOnly, maxResults)
		telemetry.SetAttributes(ctx, attribute.Int("discovery.results", len(urls)))
		return nil
	}, attribute.String("discovery.query", query), attribute.Bool("discovery.trusted_only", trustedOnly))
	if err != nil {
		return nil, err
	}
	return urls, nil
}

func (e *Engine) collect(ctx context.Context, html string, trustedOnly bool, maxResults int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []string{}
	}

	log := logger.G(ctx)
	urls := []string{}
	seen := make(map[string]bool)
	doc.Find(resultLinkSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		href = ResolveRedirect(href)
		if !strings.HasPrefix(href, "http") {
			return true
		}
		if err := fetch.ValidateURL(href); err != nil {
			log.WithField("url", href).Debug("skipping invalid result link")
			return true
		}
		if trustedOnly && !e.trusted.Matches(href) {
			log.WithField("url", href).Debug("skipping untrusted result link")
			return true
		}
		if seen[href] {
			return true
		}
		seen[href] = true
		urls = append(urls, href)
		return len(urls) < maxResults
	})
	return urls
}

// ResolveRedirect unwraps a search redirect link of the form
// /l/?uddg=<percent-encoded target>&... and returns the target. Links without
// a uddg parameter are returned unchanged.
func ResolveRedirect(link string) string {
	_, part, found := strings.Cut(link, "uddg=")
	if !found {
		return link
	}
	part, _, _ = strings.Cut(part, "&")
	if target, err := url.PathUnescape(part); err == nil {
		return target
	}
	return part
}
