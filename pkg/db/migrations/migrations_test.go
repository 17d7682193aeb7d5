package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/pricewatch/pkg/db"
)

func TestAll_AppliesCleanly(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.Open(ctx, filepath.Join(t.TempDir(), "watchers.db"), All())
	require.NoError(t, err)
	defer sqlDB.Close()

	var columns []string
	require.NoError(t, sqlDB.Select(&columns, "SELECT name FROM pragma_table_info('watch_items') ORDER BY cid"))
	assert.Equal(t, []string{"id", "position", "url", "data", "created_at", "updated_at"}, columns)

	var indexes []string
	require.NoError(t, sqlDB.Select(&indexes, "SELECT name FROM sqlite_master WHERE type='index' AND name LIKE 'idx_watch_items_%' ORDER BY name"))
	assert.Equal(t, []string{"idx_watch_items_position", "idx_watch_items_updated_at"}, indexes)

	runner := db.NewMigrationRunner(sqlDB)
	versions, err := runner.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{20261014090000, 20261014090100}, versions)
}

func TestAll_RollbackInReverse(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.Open(ctx, filepath.Join(t.TempDir(), "watchers.db"), All())
	require.NoError(t, err)
	defer sqlDB.Close()

	runner := db.NewMigrationRunner(sqlDB)
	require.NoError(t, runner.Rollback(ctx, All()))
	require.NoError(t, runner.Rollback(ctx, All()))

	var count int
	require.NoError(t, sqlDB.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'watch_items'"))
	assert.Zero(t, count)
}

func TestAll_VersionsUnique(t *testing.T) {
	seen := map[int64]bool{}
	for _, m := range All() {
		assert.False(t, seen[m.Version], "duplicate version %d", m.Version)
		seen[m.Version] = true
		assert.NotEmpty(t, m.Description)
		assert.NotNil(t, m.Down)
	}
}
