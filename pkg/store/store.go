// Package store persists the watch list.
//
// Every backend exposes the whole list as one watch.Document. Update runs a
// load-modify-save cycle as a single serialized operation: the JSON backend
// holds a lock file and replaces the document by atomic rename, the SQLite
// backend uses one transaction.
package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store gives access to the persisted watch document.
type Store interface {
	// View loads the document and passes it to fn. Changes made by fn are
	// discarded.
	View(ctx context.Context, fn func(doc *watch.Document) error) error
	// Update loads the document, passes it to fn and saves the result. When fn
	// returns an error nothing is written.
	Update(ctx context.Context, fn func(doc *watch.Document) error) error
	// Location describes where the document lives.
	Location() string
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend     string
	Path        string
	SQLitePath  string
	LockTimeout time.Duration
}

// Open returns the backend named by cfg.Backend. An empty backend means JSON.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendJSON:
		return NewJSONStore(cfg.Path, WithLockTimeout(cfg.LockTimeout))
	case BackendSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// ExpandPath resolves a leading ~/ against the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
	}
	return path, nil
}
