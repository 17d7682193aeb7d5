package watcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/pricewatch/pkg/fetch"
	"github.com/jingkaihe/pricewatch/pkg/logger"
	"github.com/jingkaihe/pricewatch/pkg/pricing"
	"github.com/jingkaihe/pricewatch/pkg/telemetry"
	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

// CheckRequest selects the items to check: one id, or all of them.
type CheckRequest struct {
	ID  string
	All bool
}

// CheckResult is the outcome for one item. Failed checks only carry ID,
// Error and CheckedAt.
type CheckResult struct {
	ID            string
	OK            bool
	Error         string
	Title         string
	URL           string
	Price         *float64
	PreviousPrice *float64
	Currency      string
	Alerts        []watch.Alert
	CheckedAt     time.Time
	Debug         *pricing.Debug
}

type checkFailure struct {
	ID        string    `json:"id"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error"`
	CheckedAt time.Time `json:"checkedAt"`
}

type checkSuccess struct {
	ID            string         `json:"id"`
	OK            bool           `json:"ok"`
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	Price         *float64       `json:"price"`
	PreviousPrice *float64       `json:"previousPrice"`
	Currency      string         `json:"currency"`
	Alerts        []watch.Alert  `json:"alerts"`
	CheckedAt     time.Time      `json:"checkedAt"`
	Debug         *pricing.Debug `json:"debug"`
}

// MarshalJSON emits the failure or the success shape depending on OK.
func (r CheckResult) MarshalJSON() ([]byte, error) {
	if !r.OK {
		return json.Marshal(checkFailure{ID: r.ID, Error: r.Error, CheckedAt: r.CheckedAt})
	}
	alerts := r.Alerts
	if alerts == nil {
		alerts = []watch.Alert{}
	}
	return json.Marshal(checkSuccess{
		ID:            r.ID,
		OK:            true,
		Title:         r.Title,
		URL:           r.URL,
		Price:         r.Price,
		PreviousPrice: r.PreviousPrice,
		Currency:      r.Currency,
		Alerts:        alerts,
		CheckedAt:     r.CheckedAt,
		Debug:         r.Debug,
	})
}

// ItemAlert is an alert with the originating item merged in.
type ItemAlert struct {
	watch.Alert
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CheckReport is the result of one Check call.
type CheckReport struct {
	Results []CheckResult `json:"results"`
	Alerts  []ItemAlert   `json:"alerts"`
}

type observation struct {
	id        string
	url       string
	checkedAt time.Time
	product   *pricing.Product
	err       error
}

// Check fetches every selected item in turn and records the observations.
//
// Items are selected from a read-only view and fetched without holding the
// store lock. All successful observations are then applied in one update
// against the freshly loaded document, so alerts compare with the latest
// stored price and concurrent adds or removals are not lost. A failed fetch
// leaves its item untouched and is reported in the item's result.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*CheckReport, error) {
	if !req.All && req.ID == "" {
		return nil, userErrorf(ErrValidation, "either an id or all items must be selected")
	}
	if s.parser == nil {
		return nil, errors.New("price parser is not configured")
	}

	var report *CheckReport
	err := telemetry.WithSpan(ctx, "watcher.check", func(ctx context.Context) error {
		targets, err := s.selectTargets(ctx, req)
		if err != nil {
			return err
		}
		telemetry.SetAttributes(ctx, attribute.Int("watcher.items", len(targets)))

		observations := make([]observation, 0, len(targets))
		for _, t := range targets {
			observations = append(observations, s.observe(ctx, t.ID, t.URL))
		}

		results, err := s.apply(ctx, observations)
		if err != nil {
			return err
		}
		report = newReport(results)
		for _, a := range report.Alerts {
			telemetry.AddEvent(ctx, "watcher.alert",
				attribute.String("watch.id", a.ID),
				attribute.String("alert.type", string(a.Type)),
				attribute.Float64("alert.new_price", a.NewPrice),
			)
		}
		return nil
	}, attribute.Bool("watcher.all", req.All))
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) selectTargets(ctx context.Context, req CheckRequest) ([]watch.Item, error) {
	var targets []watch.Item
	err := s.store.View(ctx, func(doc *watch.Document) error {
		for _, it := range doc.Items {
			if req.All || it.ID == req.ID {
				targets = append(targets, *it)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, userErrorf(ErrNoMatch, "No matching watch items")
	}
	return targets, nil
}

func (s *Service) observe(ctx context.Context, id, rawURL string) observation {
	obs := observation{id: id, url: rawURL, checkedAt: s.now().UTC()}
	ctx = logger.WithLogger(ctx, logger.G(ctx).WithField("id", id).WithField("url", rawURL))
	obs.err = telemetry.WithSpan(ctx, "watcher.check_item", func(ctx context.Context) error {
		product, err := s.parser.Parse(ctx, rawURL)
		if err != nil {
			return err
		}
		obs.product = product
		return nil
	}, attribute.String("watch.id", id), attribute.String("url", rawURL))

	if obs.err != nil {
		logger.G(ctx).WithError(obs.err).
			WithField("kind", string(fetch.KindOf(obs.err))).
			Warn("price check failed")
	}
	return obs
}

func (s *Service) apply(ctx context.Context, observations []observation) ([]CheckResult, error) {
	results := make([]CheckResult, len(observations))
	for i, obs := range observations {
		if obs.err != nil {
			results[i] = CheckResult{ID: obs.id, Error: obs.err.Error(), CheckedAt: obs.checkedAt}
		}
	}

	pending := false
	for _, obs := range observations {
		if obs.err == nil {
			pending = true
			break
		}
	}
	if !pending {
		return results, nil
	}

	err := s.store.Update(ctx, func(doc *watch.Document) error {
		for i, obs := range observations {
			if obs.err != nil {
				continue
			}
			it := doc.Find(obs.id)
			if it == nil {
				results[i] = CheckResult{ID: obs.id, Error: "Not found", CheckedAt: obs.checkedAt}
				continue
			}
			results[i] = record(it, obs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// record applies one successful observation to it.
func record(it *watch.Item, obs observation) CheckResult {
	price := obs.product.Price
	alerts := EvaluateAlerts(it.CurrentPrice, it.TargetPrice, price)

	it.PreviousPrice = it.CurrentPrice
	it.CurrentPrice = price
	it.Title = obs.product.Title
	checkedAt := obs.checkedAt
	it.LastCheckedAt = &checkedAt

	if price != nil && (it.LowestPrice == nil || *price < *it.LowestPrice) {
		it.LowestPrice = watch.Float(*price)
	}

	it.AppendSnapshot(watch.Snapshot{At: checkedAt, Price: price, Alerts: alerts})

	debug := obs.product.Debug
	return CheckResult{
		ID:            it.ID,
		OK:            true,
		Title:         it.Title,
		URL:           it.URL,
		Price:         price,
		PreviousPrice: it.PreviousPrice,
		Currency:      it.Currency,
		Alerts:        alerts,
		CheckedAt:     checkedAt,
		Debug:         &debug,
	}
}

func newReport(results []CheckResult) *CheckReport {
	report := &CheckReport{Results: results, Alerts: []ItemAlert{}}
	for _, r := range results {
		for _, a := range r.Alerts {
			report.Alerts = append(report.Alerts, ItemAlert{Alert: a, ID: r.ID, Title: r.Title, URL: r.URL})
		}
	}
	return report
}
