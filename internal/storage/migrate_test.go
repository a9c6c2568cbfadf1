package storage

import (
	"bytes"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingsync/internal/log"
)

func TestMigrateKeepsConnectionOpen(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "weddingsync.db"))
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf})

	require.NoError(t, Migrate(db, logger))
	assert.Contains(t, buf.String(), "Database migrated")
	assert.Contains(t, buf.String(), "version=1")
	assert.Contains(t, buf.String(), "component=storage")

	require.NoError(t, db.Ping())
	_, err = db.Exec(`INSERT INTO kv (key, value) VALUES ('weddingsync_profiles', '[]')`)
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, Migrate(db, logger))
	assert.Contains(t, buf.String(), "Database schema up to date")
	assert.Contains(t, buf.String(), "version=1")

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n))
	assert.Equal(t, 1, n)
}
