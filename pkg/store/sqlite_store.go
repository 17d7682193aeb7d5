package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pricewatch/pkg/db"
	"github.com/jingkaihe/pricewatch/pkg/db/migrations"
	"github.com/jingkaihe/pricewatch/pkg/logger"
	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

// SQLiteStore keeps one row per item in the watch_items table.
type SQLiteStore struct {
	db   *sqlx.DB
	path string
}

type itemRow struct {
	ID        string    `db:"id"`
	Position  int       `db:"position"`
	URL       string    `db:"url"`
	Data      string    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.Open(ctx, path, migrations.All())
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: sqlDB, path: path}, nil
}

// Location returns the database path.
func (s *SQLiteStore) Location() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// View loads every item in list order.
func (s *SQLiteStore) View(ctx context.Context, fn func(doc *watch.Document) error) error {
	rows, err := s.selectRows(ctx, s.db)
	if err != nil {
		return err
	}
	doc, err := rowsToDocument(rows)
	if err != nil {
		return err
	}
	return fn(doc)
}

// Update runs fn inside a single transaction. Rows for removed items are
// deleted; new or changed items are upserted.
func (s *SQLiteStore) Update(ctx context.Context, fn func(doc *watch.Document) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	rows, err := s.selectRows(ctx, tx)
	if err != nil {
		return err
	}
	doc, err := rowsToDocument(rows)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	doc.Normalize()

	existing := make(map[string]itemRow, len(rows))
	for _, r := range rows {
		existing[r.ID] = r
	}
	keep := make(map[string]bool, len(doc.Items))
	for _, it := range doc.Items {
		keep[it.ID] = true
	}

	for id := range existing {
		if keep[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM watch_items WHERE id = ?", id); err != nil {
			return errors.Wrapf(err, "failed to delete item %s", id)
		}
	}

	now := time.Now().UTC()
	written := 0
	for pos, it := range doc.Items {
		data, err := json.Marshal(it)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal item %s", it.ID)
		}
		if old, ok := existing[it.ID]; ok && old.Data == string(data) && old.Position == pos && old.URL == it.URL {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO watch_items (id, position, url, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				position = excluded.position,
				url = excluded.url,
				data = excluded.data,
				updated_at = excluded.updated_at
		`, it.ID, pos, it.URL, string(data), it.CreatedAt.UTC(), now)
		if err != nil {
			return errors.Wrapf(err, "failed to save item %s", it.ID)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	logger.G(ctx).WithField("path", s.path).WithField("written", written).Debug("saved watch store")
	return nil
}

func (s *SQLiteStore) selectRows(ctx context.Context, q sqlx.QueryerContext) ([]itemRow, error) {
	var rows []itemRow
	err := sqlx.SelectContext(ctx, q, &rows,
		"SELECT id, position, url, data, created_at, updated_at FROM watch_items ORDER BY position, created_at")
	if err != nil {
		return nil, errors.Wrap(err, "failed to load watch items")
	}
	return rows, nil
}

func rowsToDocument(rows []itemRow) (*watch.Document, error) {
	doc := &watch.Document{Items: make([]*watch.Item, 0, len(rows))}
	for _, r := range rows {
		var it watch.Item
		if err := json.Unmarshal([]byte(r.Data), &it); err != nil {
			return nil, errors.Wrapf(err, "failed to decode item %s", r.ID)
		}
		doc.Items = append(doc.Items, &it)
	}
	doc.Normalize()
	return doc, nil
}
