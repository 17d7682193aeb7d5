package migrations

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pricewatch/pkg/db"
)

// Migration20261014090100AddWatchItemIndexes indexes the columns used for
// ordering and housekeeping queries.
func Migration20261014090100AddWatchItemIndexes() db.Migration {
	return db.Migration{
		Version:     20261014090100,
		Description: "Add watch_items indexes",
		Up: func(ctx context.Context, tx *sqlx.Tx) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_watch_items_position ON watch_items(position)",
				"CREATE INDEX IF NOT EXISTS idx_watch_items_updated_at ON watch_items(updated_at DESC)",
			}
			for _, idx := range indexes {
				if _, err := tx.ExecContext(ctx, idx); err != nil {
					return errors.Wrap(err, "failed to create index")
				}
			}
			return nil
		},
		Down: func(ctx context.Context, tx *sqlx.Tx) error {
			drops := []string{
				"DROP INDEX IF EXISTS idx_watch_items_updated_at",
				"DROP INDEX IF EXISTS idx_watch_items_position",
			}
			for _, d := range drops {
				if _, err := tx.ExecContext(ctx, d); err != nil {
					return errors.Wrap(err, "failed to drop index")
				}
			}
			return nil
		},
	}
}
