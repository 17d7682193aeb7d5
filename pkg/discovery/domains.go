package discovery

import (
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultTrustedDomains are the retailers accepted by trusted-only
// discovery.
var DefaultTrustedDomains = []string{
	"falabella.com",
	"paris.cl",
	"ripley.cl",
	"lider.cl",
	"mercadolibre.cl",
	"abcdin.cl",
	"hites.com",
	"pcfactory.cl",
	"maconline.com",
	"entel.cl",
	"claro.cl",
}

// DomainList is an allow-list of hosts. A plain entry matches the host itself
// and any subdomain of it; entries containing * or ? are glob patterns
// matched against the whole host.
type DomainList struct {
	domains      []string
	globPatterns []glob.Glob
	rawPatterns  []string
}

// NewDomainList builds a list from entries, which may be bare hosts or full
// URLs. Blank entries and # comments are ignored.
func NewDomainList(entries []string) *DomainList {
	dl := &DomainList{}
	for _, entry := range entries {
		host := normalizeHost(entry)
		if host == "" {
			continue
		}
		if strings.ContainsAny(host, "*?") {
			if g, err := glob.Compile(host, '.'); err == nil {
				dl.globPatterns = append(dl.globPatterns, g)
				dl.rawPatterns = append(dl.rawPatterns, host)
				continue
			}
		}
		dl.domains = append(dl.domains, host)
	}
	return dl
}

// Matches reports whether rawURL's host is on the list.
func (dl *DomainList) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	for _, d := range dl.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	for _, g := range dl.globPatterns {
		if g.Match(host) {
			return true
		}
	}
	return false
}

// Domains returns the plain entries followed by the glob patterns.
func (dl *DomainList) Domains() []string {
	out := make([]string, 0, len(dl.domains)+len(dl.rawPatterns))
	out = append(out, dl.domains...)
	return append(out, dl.rawPatterns...)
}

func normalizeHost(entry string) string {
	entry = strings.ToLower(strings.TrimSpace(entry))
	if entry == "" || strings.HasPrefix(entry, "#") {
		return ""
	}
	if !strings.HasPrefix(entry, "http://") && !strings.HasPrefix(entry, "https://") {
		entry = "https://" + entry
	}
	// A ? would be read as the start of a query, so patterns skip the parser.
	if !strings.ContainsAny(entry, "*?") {
		if u, err := url.Parse(entry); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}

	host := strings.TrimPrefix(strings.TrimPrefix(entry, "https://"), "http://")
	if i := strings.IndexAny(host, "/:"); i != -1 {
		host = host[:i]
	}
	return host
}
