package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/pricewatch/pkg/config"
	"github.com/jingkaihe/pricewatch/pkg/watcher"
)

type cli struct {
	t    *testing.T
	dir  string
	args []string
}

func newCLI(t *testing.T, extra ...string) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return &cli{
		t:    t,
		dir:  dir,
		args: append([]string{"--store", filepath.Join(dir, "watchers.json")}, extra...),
	}
}

// run executes one command and decodes its single output line.
func (c *cli) run(args ...string) (int, map[string]any) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append(append([]string{}, args...), c.args...), &stdout, &stderr)

	out := strings.TrimRight(stdout.String(), "\n")
	require.NotContains(c.t, out, "\n", "stdout must be a single line: %q", out)

	var decoded map[string]any
	require.NoError(c.t, json.Unmarshal([]byte(out), &decoded), "stdout: %q", out)
	return code, decoded
}

func productServer(t *testing.T, prices ...string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n >= len(prices) {
			n = len(prices) - 1
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Smart TV</title>
<script type="application/ld+json">{"@type":"Product","offers":{"price":%q}}</script>
</head><body></body></html>`, prices[n])
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestAdd_EndToEnd(t *testing.T) {
	c := newCLI(t)

	code, out := c.run("add", "--url", "https://shop.example/item", "--target-price", "50000", "--currency", "CLP")
	require.Equal(t, 0, code, out)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, filepath.Join(c.dir, "watchers.json"), out["store"])

	item := out["item"].(map[string]any)
	assert.Regexp(t, `^[0-9a-f]{10}$`, item["id"])
	assert.Equal(t, "https://shop.example/item", item["url"])
	assert.Equal(t, false, item["duplicate"])

	code, out = c.run("add", "--url", "https://shop.example/item")
	require.Equal(t, 0, code)
	again := out["item"].(map[string]any)
	assert.Equal(t, item["id"], again["id"])
	assert.Equal(t, true, again["duplicate"])

	code, out = c.run("list")
	require.Equal(t, 0, code)
	assert.Equal(t, float64(1), out["count"])
	listed := out["items"].([]any)[0].(map[string]any)
	assert.Equal(t, 50000.0, listed["targetPrice"])
	assert.Nil(t, listed["currentPrice"])
	assert.Equal(t, []any{}, listed["history"])
	assert.NotContains(t, listed, "query")
}

func TestAdd_Errors(t *testing.T) {
	c := newCLI(t)

	code, out := c.run("add", "--url", "ftp://shop.example/item")
	assert.Equal(t, 2, code)
	assert.Equal(t, map[string]any{"ok": false, "error": "Only http/https URLs are allowed"}, out)

	code, out = c.run("add")
	assert.Equal(t, 2, code)
	assert.Equal(t, false, out["ok"])
	assert.Contains(t, out["error"], "url")

	code, out = c.run("list")
	require.Equal(t, 0, code)
	assert.Equal(t, float64(0), out["count"])
}

func TestCheck_EndToEnd(t *testing.T) {
	server, _ := productServer(t, "100", "85")
	c := newCLI(t)

	_, out := c.run("add", "--url", server.URL+"/tv", "--target-price", "90")
	id := out["item"].(map[string]any)["id"].(string)

	code, out := c.run("check", "--id", id)
	require.Equal(t, 0, code, out)
	assert.Equal(t, []any{}, out["alerts"])

	code, out = c.run("check", "--all")
	require.Equal(t, 0, code, out)

	result := out["results"].([]any)[0].(map[string]any)
	assert.Equal(t, true, result["ok"])
	assert.Equal(t, "Smart TV", result["title"])
	assert.Equal(t, 85.0, result["price"])
	assert.Equal(t, 100.0, result["previousPrice"])
	assert.Equal(t, "CLP", result["currency"])
	assert.Equal(t, "jsonld", result["debug"].(map[string]any)["source"])

	alerts := out["alerts"].([]any)
	require.Len(t, alerts, 2)
	drop := alerts[0].(map[string]any)
	assert.Equal(t, "price_drop", drop["type"])
	assert.Equal(t, 15.0, drop["dropPercent"])
	assert.Equal(t, id, drop["id"])
	assert.Equal(t, "Smart TV", drop["title"])
	assert.Equal(t, server.URL+"/tv", drop["url"])
	assert.Equal(t, "target_hit", alerts[1].(map[string]any)["type"])

	code, out = c.run("history", "--id", id)
	require.Equal(t, 0, code)
	assert.Equal(t, id, out["id"])
	assert.Len(t, out["history"], 2)
}

func TestCheck_FetchFailureIsData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()
	c := newCLI(t)
	c.run("add", "--url", server.URL)

	code, out := c.run("check", "--all")
	require.Equal(t, 0, code, out)
	result := out["results"].([]any)[0].(map[string]any)
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "Unsupported content type: application/json", result["error"])
	assert.Contains(t, result, "checkedAt")
	assert.NotContains(t, result, "price")
}

func TestCheck_Selection(t *testing.T) {
	c := newCLI(t)

	code, out := c.run("check", "--all")
	assert.Equal(t, 2, code)
	assert.Equal(t, "No matching watch items", out["error"])

	code, _ = c.run("check")
	assert.Equal(t, 2, code, "one of --id and --all is required")

	code, _ = c.run("check", "--id", "abc", "--all")
	assert.Equal(t, 2, code, "--id and --all are exclusive")

	c.run("add", "--url", "https://shop.example/a")
	code, out = c.run("check", "--id", "0000000000")
	assert.Equal(t, 2, code)
	assert.Equal(t, "No matching watch items", out["error"])
}

func TestRemoveAndHistory(t *testing.T) {
	c := newCLI(t)
	_, out := c.run("add", "--url", "https://shop.example/a")
	id := out["item"].(map[string]any)["id"].(string)

	code, out := c.run("history", "--id", "nope")
	assert.Equal(t, 2, code)
	assert.Equal(t, map[string]any{"ok": false, "error": "Not found"}, out)

	code, out = c.run("remove", "--id", "nope")
	assert.Equal(t, 0, code)
	assert.Equal(t, map[string]any{"ok": true, "removed": float64(0)}, out)

	code, out = c.run("remove", "--id", id)
	assert.Equal(t, 0, code)
	assert.Equal(t, float64(1), out["removed"])
}

func TestAddItem_EndToEnd(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Query().Get("q") == "json please" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{}`))
			return
		}
		if r.URL.Query().Get("q") == "nothing" {
			w.Write([]byte(`<html><body>No results</body></html>`))
			return
		}
		w.Write([]byte(`<html><body>
<a class="result__a" href="/l/?uddg=https%3A%2F%2Fwww.paris.cl%2Ftv-1&amp;rut=1">Paris</a>
<a class="result__a" href="https://notatrusted.xyz/tv">Other</a>
</body></html>`))
	}))
	defer search.Close()
	t.Setenv("PRICEWATCH_DISCOVERY_ENDPOINT", search.URL+"/html/")
	c := newCLI(t)

	code, out := c.run("add-item", "--query", "smart tv", "--trusted-only", "--target-price", "300000")
	require.Equal(t, 0, code, out)
	assert.Equal(t, "smart tv", out["query"])
	assert.Equal(t, true, out["trustedOnly"])
	assert.Equal(t, float64(1), out["count"])
	created := out["created"].([]any)[0].(map[string]any)
	assert.Equal(t, "https://www.paris.cl/tv-1", created["url"])

	_, out = c.run("list")
	item := out["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "smart tv", item["query"])
	assert.Equal(t, 300000.0, item["targetPrice"])

	code, out = c.run("add-item", "--query", "nothing")
	assert.Equal(t, 2, code)
	assert.Equal(t, "No product URLs discovered for query", out["error"])

	code, out = c.run("add-item", "--query", "json please")
	assert.Equal(t, 2, code)
	assert.Equal(t, map[string]any{"ok": false, "error": "Unsupported content type: application/json"}, out)

	code, out = c.run("add-item", "--query", "  ")
	assert.Equal(t, 2, code)
	assert.Equal(t, "query is required", out["error"])
}

func TestSQLiteBackend(t *testing.T) {
	server, _ := productServer(t, "19.990")
	c := newCLI(t)
	c.args = append(c.args, "--backend", "sqlite", "--sqlite-path", filepath.Join(c.dir, "watchers.db"))

	code, out := c.run("add", "--url", server.URL)
	require.Equal(t, 0, code, out)
	assert.Equal(t, filepath.Join(c.dir, "watchers.db"), out["store"])

	code, out = c.run("check", "--all")
	require.Equal(t, 0, code, out)
	assert.Equal(t, 19990.0, out["results"].([]any)[0].(map[string]any)["price"])

	_, out = c.run("list")
	assert.Equal(t, 19990.0, out["items"].([]any)[0].(map[string]any)["lowestPrice"])
}

func TestInvalidConfiguration(t *testing.T) {
	c := newCLI(t, "--backend", "redis")

	code, out := c.run("list")
	assert.Equal(t, 2, code)
	assert.Contains(t, out["error"], `store.backend must be json or sqlite, got "redis"`)
}

func TestVersion(t *testing.T) {
	c := newCLI(t)

	code, out := c.run("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "version")
	assert.Contains(t, out, "goVersion")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"usage", errors.New(`required flag(s) "url" not set`), 2},
		{"validation", errors.Wrap(watcher.ErrValidation, "bad"), 2},
		{"not found inside runtime", runtimeFailure(errors.Wrap(watcher.ErrNotFound, "x")), 2},
		{"config", (&config.Settings{}).Validate(), 2},
		{"io failure", runtimeFailure(errors.New("disk full")), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
