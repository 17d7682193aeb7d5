package migrations

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pricewatch/pkg/db"
)

// Migration20261014090000CreateWatchItems creates the watch_items table. Each
// row stores one item as JSON; position keeps the list order.
func Migration20261014090000CreateWatchItems() db.Migration {
	return db.Migration{
		Version:     20261014090000,
		Description: "Create watch_items table",
		Up: func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS watch_items (
					id TEXT PRIMARY KEY,
					position INTEGER NOT NULL,
					url TEXT NOT NULL UNIQUE,
					data TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)
			`)
			return errors.Wrap(err, "failed to create watch_items table")
		},
		Down: func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS watch_items")
			return errors.Wrap(err, "failed to drop watch_items table")
		},
	}
}
