// Package migrations holds the sqlite watch store schema, versioned by
// timestamp (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/jingkaihe/pricewatch/pkg/db"
)

// All returns every registered migration. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20261014090000CreateWatchItems(),
		Migration20261014090100AddWatchItemIndexes(),
	}
}
