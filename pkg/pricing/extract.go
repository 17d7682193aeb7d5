package pricing

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

// Markup is one page prepared for extraction: the raw text and its parsed
// DOM.
type Markup struct {
	Raw string
	Doc *goquery.Document
}

// NewMarkup parses html. The HTML5 parser accepts any input, so the error
// path only triggers on reader failures and yields an empty document.
func NewMarkup(html string) *Markup {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return &Markup{Raw: html, Doc: doc}
}

// Extractor produces price candidates from a page. Extractors never fail;
// a page without prices yields an empty slice.
type Extractor interface {
	Source() watch.Source
	Extract(m *Markup) []watch.Candidate
}

// DefaultExtractors returns the three strategies in pooling order.
func DefaultExtractors() []Extractor {
	return []Extractor{JSONLDExtractor{}, MetaExtractor{}, RegexExtractor{}}
}

// JSONLDExtractor reads "price" fields from application/ld+json blocks.
type JSONLDExtractor struct{}

func (JSONLDExtractor) Source() watch.Source { return watch.SourceJSONLD }

func (e JSONLDExtractor) Extract(m *Markup) []watch.Candidate {
	var out []watch.Candidate
	m.Doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("type", "")), "application/ld+json") {
			return
		}
		dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(s.Text())))
		dec.UseNumber()
		var parsed any
		if err := dec.Decode(&parsed); err != nil {
			return
		}
		for _, raw := range collectPrices(parsed) {
			if p, ok := Normalize(raw); ok {
				out = append(out, watch.Candidate{Source: e.Source(), Price: p})
			}
		}
	})
	return out
}

// collectPrices walks v depth-first and returns the text of every string or
// numeric "price" field. Object keys are visited in sorted order.
func collectPrices(v any) []string {
	var out []string
	stack := []any{v}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n := node.(type) {
		case map[string]any:
			switch p := n["price"].(type) {
			case string:
				out = append(out, p)
			case json.Number:
				out = append(out, numberText(p))
			}
			keys := make([]string, 0, len(n))
			for k := range n {
				keys = append(keys, k)
			}
			sort.Sort(sort.Reverse(sort.StringSlice(keys)))
			for _, k := range keys {
				stack = append(stack, n[k])
			}
		case []any:
			for i := len(n) - 1; i >= 0; i-- {
				stack = append(stack, n[i])
			}
		}
	}
	return out
}

// numberText renders a decoded JSON number as text. Integers keep their
// digits. Other numbers use the shortest round-trip digits, with ".0" on
// whole values and exponent form outside 1e-4 <= |v| < 1e16, so 19.990
// becomes "19.99" and 1e3 becomes "1000.0".
func numberText(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}
	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(fixed, ".") {
		fixed += ".0"
	}
	return fixed
}

var metaPriceKeys = map[string]bool{
	"product:price:amount": true,
	"og:price:amount":      true,
	"twitter:data1":        true,
}

// MetaExtractor reads the content of known price meta tags.
type MetaExtractor struct{}

func (MetaExtractor) Source() watch.Source { return watch.SourceMeta }

func (e MetaExtractor) Extract(m *Markup) []watch.Candidate {
	var out []watch.Candidate
	m.Doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := strings.ToLower(s.AttrOr("property", ""))
		if !metaPriceKeys[key] {
			key = strings.ToLower(s.AttrOr("name", ""))
		}
		if !metaPriceKeys[key] {
			return
		}
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		if p, ok := Normalize(content); ok {
			out = append(out, watch.Candidate{Source: e.Source(), Price: p})
		}
	})
	return out
}

// space matches the characters Unicode treats as whitespace in text, so
// amounts written with a no-break space such as "$\u00a01.990" are found.
const space = `\t\n\v\f\r\x{1C}-\x{20}\x{85}\x{A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}`

var priceRe = regexp.MustCompile(`(?i)(?:\$|CLP[` + space + `]?|USD[` + space + `]?)[` + space + `]*([0-9][0-9.,` + space + `]{1,20})`)

// RegexExtractor scans raw markup for currency-prefixed amounts.
type RegexExtractor struct{}

func (RegexExtractor) Source() watch.Source { return watch.SourceRegex }

func (e RegexExtractor) Extract(m *Markup) []watch.Candidate {
	var out []watch.Candidate
	for _, match := range priceRe.FindAllStringSubmatch(m.Raw, -1) {
		if p, ok := Normalize(match[1]); ok {
			out = append(out, watch.Candidate{Source: e.Source(), Price: p})
		}
	}
	return out
}
