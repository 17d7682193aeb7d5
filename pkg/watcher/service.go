// Package watcher implements the watch-list operations: adding items by URL
// or by discovery query, listing, removal, history and price checks with
// alert evaluation.
package watcher

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/pricewatch/pkg/discovery"
	"github.com/jingkaihe/pricewatch/pkg/fetch"
	"github.com/jingkaihe/pricewatch/pkg/logger"
	"github.com/jingkaihe/pricewatch/pkg/pricing"
	"github.com/jingkaihe/pricewatch/pkg/store"
	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

// DefaultMaxResults caps AddByQuery when the request leaves it unset.
const DefaultMaxResults = 5

// ProductParser fetches a product page and extracts its title and price.
type ProductParser interface {
	Parse(ctx context.Context, rawURL string) (*pricing.Product, error)
}

// Discoverer finds product URLs for a free-text query.
type Discoverer interface {
	Discover(ctx context.Context, query string, trustedOnly bool, maxResults int) ([]string, error)
}

// Service runs watch operations against a store.
type Service struct {
	store      store.Store
	parser     ProductParser
	discoverer Discoverer
	now        func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a Service. parser and discoverer may be nil for callers
// that never check or discover.
func NewService(st store.Store, parser ProductParser, discoverer Discoverer, opts ...Option) *Service {
	s := &Service{
		store:      st,
		parser:     parser,
		discoverer: discoverer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location describes where the watch list is stored.
func (s *Service) Location() string {
	return s.store.Location()
}

// AddRequest describes one product URL to track.
type AddRequest struct {
	URL         string
	TargetPrice *float64
	Currency    string
	Query       string
}

// AddResult reports the id tracking a URL and whether it already existed.
type AddResult struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Duplicate bool   `json:"duplicate"`
}

// Add starts tracking req.URL. Adding a URL that is already tracked returns
// the existing id and changes nothing.
func (s *Service) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	if err := fetch.ValidateURL(req.URL); err != nil {
		return nil, userErrorf(ErrValidation, "%s", err.Error())
	}

	var result *AddResult
	err := s.store.Update(ctx, func(doc *watch.Document) error {
		result = s.addToDocument(doc, req)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.G(ctx).WithField("id", result.ID).WithField("url", result.URL).
		WithField("duplicate", result.Duplicate).Info("watch item added")
	return result, nil
}

func (s *Service) addToDocument(doc *watch.Document, req AddRequest) *AddResult {
	if existing := doc.FindByURL(req.URL); existing != nil {
		return &AddResult{ID: existing.ID, URL: req.URL, Duplicate: true}
	}

	it := watch.NewItem(req.URL, req.TargetPrice, req.Currency, req.Query, s.now())
	for doc.Find(it.ID) != nil {
		it.ID = watch.NewID()
	}
	doc.Items = append(doc.Items, it)
	return &AddResult{ID: it.ID, URL: it.URL}
}

// QueryRequest describes a discovery-driven add.
type QueryRequest struct {
	Query       string
	TargetPrice *float64
	Currency    string
	MaxResults  int
	TrustedOnly bool
}

// QueryResult lists the items created (or found) for a query.
type QueryResult struct {
	Query       string      `json:"query"`
	Created     []AddResult `json:"created"`
	Count       int         `json:"count"`
	TrustedOnly bool        `json:"trustedOnly"`
}

// AddByQuery discovers product URLs for req.Query and adds each of them,
// tagged with the query, in a single store update.
func (s *Service) AddByQuery(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, userErrorf(ErrValidation, "query is required")
	}
	if req.MaxResults < 1 {
		return nil, userErrorf(ErrValidation, "max results must be at least 1")
	}
	if s.discoverer == nil {
		return nil, errors.New("discovery is not configured")
	}

	urls, err := s.discoverer.Discover(ctx, query, req.TrustedOnly, req.MaxResults)
	if err != nil {
		if errors.Is(err, discovery.ErrInvalidRequest) || fetch.IsValidation(err) {
			return nil, userErrorf(ErrValidation, "%s", err.Error())
		}
		return nil, errors.Wrap(err, "discovery failed")
	}
	if len(urls) == 0 {
		return nil, userErrorf(ErrNoResults, "No product URLs discovered for query")
	}

	created := make([]AddResult, 0, len(urls))
	err = s.store.Update(ctx, func(doc *watch.Document) error {
		created = created[:0]
		for _, u := range urls {
			r := s.addToDocument(doc, AddRequest{
				URL:         u,
				TargetPrice: req.TargetPrice,
				Currency:    req.Currency,
				Query:       query,
			})
			created = append(created, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Query:       query,
		Created:     created,
		Count:       len(created),
		TrustedOnly: req.TrustedOnly,
	}, nil
}

// List returns every tracked item in insertion order.
func (s *Service) List(ctx context.Context) ([]*watch.Item, error) {
	var items []*watch.Item
	err := s.store.View(ctx, func(doc *watch.Document) error {
		items = doc.Items
		return nil
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*watch.Item{}
	}
	return items, nil
}

// Remove deletes the item with id and reports how many items went (0 or 1).
// An unknown id is not an error.
func (s *Service) Remove(ctx context.Context, id string) (int, error) {
	removed := 0
	err := s.store.Update(ctx, func(doc *watch.Document) error {
		removed = doc.Remove(id)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// History returns the bounded price history of one item.
func (s *Service) History(ctx context.Context, id string) ([]watch.Snapshot, error) {
	var history []watch.Snapshot
	err := s.store.View(ctx, func(doc *watch.Document) error {
		it := doc.Find(id)
		if it == nil {
			return userErrorf(ErrNotFound, "Not found")
		}
		history = it.History
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}
