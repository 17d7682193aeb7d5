// Package fetch performs the bounded, validated HTTP GETs used to download
// product pages and search results.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/encoding/unicode"

	"github.com/jingkaihe/pricewatch/pkg/logger"
	"github.com/jingkaihe/pricewatch/pkg/telemetry"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; PriceWatcher/1.1)"
	DefaultTimeout   = 12 * time.Second
	DefaultMaxBytes  = 2_000_000
)

// Options configures a Fetcher. Zero values fall back to the defaults.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	MaxBytes      int64
	RetryAttempts int
	RetryDelay    time.Duration
	// Client overrides the HTTP client, mostly for tests.
	Client *http.Client
}

// Page is a successfully downloaded HTML document.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	HTML        string
}

// Fetcher downloads HTML pages with fixed limits.
type Fetcher struct {
	client   *http.Client
	ua       string
	maxBytes int64
	attempts int
	delay    time.Duration
}

// New creates a Fetcher from opts.
func New(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Fetcher{
		client:   client,
		ua:       opts.UserAgent,
		maxBytes: opts.MaxBytes,
		attempts: opts.RetryAttempts,
		delay:    opts.RetryDelay,
	}
}

// ValidateURL accepts only absolute http(s) URLs with a host.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return newError(KindInvalidURL, rawURL, "Invalid URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return newError(KindInvalidURL, rawURL, "Only http/https URLs are allowed", nil)
	}
	if u.Host == "" {
		return newError(KindInvalidURL, rawURL, "Invalid URL", nil)
	}
	return nil
}

// Get downloads rawURL and returns its body decoded as UTF-8.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Page, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	var page *Page
	err := telemetry.WithSpan(ctx, "fetch.get", func(ctx context.Context) error {
		return retry.Do(
			func() error {
				p, err := f.get(ctx, rawURL)
				if err != nil {
					return err
				}
				page = p
				return nil
			},
			retry.Attempts(uint(f.attempts)),
			retry.Delay(f.delay),
			retry.DelayType(retry.BackOffDelay),
			retry.RetryIf(retryable),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) {
				logger.G(ctx).WithError(err).
					WithField("url", rawURL).
					WithField("attempt", n+1).
					Warn("retrying fetch")
			}),
		)
	}, attribute.String("url", rawURL))
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newError(KindInvalidURL, rawURL, "Invalid URL", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	logger.G(ctx).WithField("url", rawURL).Debug("fetching page")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(KindHTTPStatus, rawURL, "HTTP Error "+resp.Status, nil)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
		return nil, newError(KindUnsupportedContentType, rawURL, "Unsupported content type: "+contentType, nil)
	}

	// One byte past the cap is enough to detect an oversized body.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, classify(rawURL, "failed to read response body", err)
	}
	if int64(len(raw)) > f.maxBytes {
		return nil, newError(KindTooLarge, rawURL, "Response too large", nil)
	}

	return &Page{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        decodeUTF8(raw),
	}, nil
}

// decodeUTF8 replaces every invalid byte with U+FFFD.
func decodeUTF8(raw []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(out)
}

func classify(rawURL, msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, rawURL, "timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, rawURL, "timed out", err)
	}
	return newError(KindNetwork, rawURL, msg, err)
}
