// Package watch defines the persisted records of the price watcher: watch
// items, their bounded price history, alerts and extraction candidates.
package watch

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// HistoryLimit is the maximum number of snapshots kept per item.
const HistoryLimit = 120

// DefaultCurrency is used when an item is added without a currency label.
const DefaultCurrency = "CLP"

// AlertType identifies the kind of alert raised by a check
type AlertType string

const (
	// AlertPriceDrop fires when the observed price is below the previous one.
	AlertPriceDrop AlertType = "price_drop"
	// AlertTargetHit fires when the observed price is at or below the target.
	AlertTargetHit AlertType = "target_hit"
)

// Source names the extraction strategy that produced a candidate
type Source string

const (
	SourceJSONLD Source = "jsonld"
	SourceMeta   Source = "meta"
	SourceRegex  Source = "regex"
)

// Alert is a typed event computed while checking an item.
type Alert struct {
	Type        AlertType `json:"type"`
	OldPrice    *float64  `json:"oldPrice,omitempty"`
	TargetPrice *float64  `json:"targetPrice,omitempty"`
	NewPrice    float64   `json:"newPrice"`
	DropPercent *float64  `json:"dropPercent,omitempty"`
}

// Candidate is a single price found by one extractor, before selection.
type Candidate struct {
	Source Source  `json:"source"`
	Price  float64 `json:"price"`
}

// Snapshot is one entry of an item's price history.
type Snapshot struct {
	At     time.Time `json:"at"`
	Price  *float64  `json:"price"`
	Alerts []Alert   `json:"alerts"`
}

// Item is a tracked product page.
type Item struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	TargetPrice   *float64   `json:"targetPrice"`
	Currency      string     `json:"currency"`
	Title         string     `json:"title"`
	CurrentPrice  *float64   `json:"currentPrice"`
	PreviousPrice *float64   `json:"previousPrice"`
	LowestPrice   *float64   `json:"lowestPrice"`
	LastCheckedAt *time.Time `json:"lastCheckedAt"`
	History       []Snapshot `json:"history"`
	CreatedAt     time.Time  `json:"createdAt"`
	Query         string     `json:"query,omitempty"`
}

// Document is the whole persisted watch list.
type Document struct {
	Items []*Item `json:"items"`
}

// NewID returns a 10 character lowercase hex identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// NewItem creates an item with an empty history and a fresh id.
func NewItem(url string, targetPrice *float64, currency, query string, now time.Time) *Item {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Item{
		ID:          NewID(),
		URL:         url,
		TargetPrice: targetPrice,
		Currency:    currency,
		History:     []Snapshot{},
		CreatedAt:   now.UTC(),
		Query:       query,
	}
}

// Normalize replaces nil slices so the document always encodes arrays
// instead of null, and drops nil items left by hand-edited files.
func (d *Document) Normalize() {
	items := make([]*Item, 0, len(d.Items))
	for _, it := range d.Items {
		if it == nil {
			continue
		}
		if it.History == nil {
			it.History = []Snapshot{}
		}
		for i := range it.History {
			if it.History[i].Alerts == nil {
				it.History[i].Alerts = []Alert{}
			}
		}
		items = append(items, it)
	}
	d.Items = items
}

// Find returns the item with the given id, or nil.
func (d *Document) Find(id string) *Item {
	for _, it := range d.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// FindByURL returns the item tracking exactly url, or nil.
func (d *Document) FindByURL(url string) *Item {
	for _, it := range d.Items {
		if it.URL == url {
			return it
		}
	}
	return nil
}

// Remove deletes every item with the given id and reports how many went.
func (d *Document) Remove(id string) int {
	kept := d.Items[:0]
	removed := 0
	for _, it := range d.Items {
		if it.ID == id {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	d.Items = kept
	return removed
}

// AppendSnapshot adds s to the history and evicts the oldest entries
// beyond HistoryLimit.
func (it *Item) AppendSnapshot(s Snapshot) {
	if s.Alerts == nil {
		s.Alerts = []Alert{}
	}
	it.History = append(it.History, s)
	if over := len(it.History) - HistoryLimit; over > 0 {
		it.History = append([]Snapshot(nil), it.History[over:]...)
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
