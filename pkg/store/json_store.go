package store

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/pricewatch/pkg/logger"
	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

// JSONStore keeps the document in a single JSON file.
type JSONStore struct {
	path        string
	lockTimeout time.Duration
}

// JSONOption customizes a JSONStore.
type JSONOption func(*JSONStore)

// WithLockTimeout sets how long Update waits for the lock file. Non-positive
// values keep the default.
func WithLockTimeout(d time.Duration) JSONOption {
	return func(s *JSONStore) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// NewJSONStore opens the document at path, creating it as {"items": []} when
// it does not exist.
func NewJSONStore(path string, opts ...JSONOption) (*JSONStore, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	s := &JSONStore{path: path, lockTimeout: DefaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create store directory")
	}
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) ensure() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to stat store file")
	}
	return withLock(context.Background(), s.path, s.lockTimeout, func() error {
		if _, err := os.Stat(s.path); err == nil {
			return nil
		}
		return s.save(&watch.Document{Items: []*watch.Item{}})
	})
}

// Location returns the document path.
func (s *JSONStore) Location() string { return s.path }

// Close is a no-op; the file is only open during View and Update.
func (s *JSONStore) Close() error { return nil }

// View loads the document without locking. Writers replace the file by
// rename, so a reader always sees a complete document.
func (s *JSONStore) View(ctx context.Context, fn func(doc *watch.Document) error) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(doc)
}

// Update runs fn on the freshly loaded document while holding the lock file
// and writes the result atomically.
func (s *JSONStore) Update(ctx context.Context, fn func(doc *watch.Document) error) error {
	return withLock(ctx, s.path, s.lockTimeout, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		if err := s.save(doc); err != nil {
			return err
		}
		logger.G(ctx).WithField("path", s.path).WithField("items", len(doc.Items)).Debug("saved watch store")
		return nil
	})
}

// load reads the document. Valid JSON without an "items" array is read as an
// empty document.
func (s *JSONStore) load() (*watch.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &watch.Document{Items: []*watch.Item{}}, nil
		}
		return nil, errors.Wrap(err, "failed to read store file")
	}
	return decodeDocument(data)
}

func decodeDocument(data []byte) (*watch.Document, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "store file is not valid JSON")
	}

	doc := &watch.Document{Items: []*watch.Item{}}
	obj, ok := raw.(map[string]any)
	if !ok {
		return doc, nil
	}
	if _, ok := obj["items"].([]any); !ok {
		return doc, nil
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode watch items")
	}
	doc.Normalize()
	return doc, nil
}

func (s *JSONStore) save(doc *watch.Document) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "failed to marshal watch store")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary store file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to write temporary store file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to close temporary store file")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to replace store file")
	}
	return nil
}
