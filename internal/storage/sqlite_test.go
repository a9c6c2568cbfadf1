package storage

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockKV(t *testing.T) (*SQLiteKV, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	kv := NewSQLiteKVWithDB(db)
	kv.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return kv, mock
}

func TestSQLiteGet(t *testing.T) {
	kv, mock := newMockKV(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryGet)).
		WithArgs("weddingsync_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`[{"id":"default"}]`))

	val, ok, err := kv.Get(context.Background(), "weddingsync_profiles")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"default"}]`, string(val))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteGetMissing(t *testing.T) {
	kv, mock := newMockKV(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryGet)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, ok, err := kv.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteErrorsAreWrapped(t *testing.T) {
	kv, mock := newMockKV(t)
	boom := errors.New("database is locked")

	mock.ExpectQuery(regexp.QuoteMeta(queryGet)).WillReturnError(boom)
	_, _, err := kv.Get(context.Background(), "k")
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec(regexp.QuoteMeta(querySet)).
		WithArgs("k", "v", "2024-05-01T12:00:00Z").
		WillReturnError(boom)
	err = kv.Set(context.Background(), "k", []byte("v"))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "set k")

	mock.ExpectExec(regexp.QuoteMeta(queryDelete)).WithArgs("k").WillReturnError(boom)
	assert.ErrorIs(t, kv.Delete(context.Background(), "k"), boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteKeys(t *testing.T) {
	kv, mock := newMockKV(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryKeys)).
		WithArgs(Prefix, Prefix).
		WillReturnRows(sqlmock.NewRows([]string{"key"}).
			AddRow("weddingsync_expenses").
			AddRow("weddingsync_settings"))

	keys, err := kv.Keys(context.Background(), Prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"weddingsync_expenses", "weddingsync_settings"}, keys)
}

func TestSQLiteFile(t *testing.T) {
	ctx := context.Background()
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "data", "weddingsync.db"), nil)
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(ctx, "weddingsync_settings", []byte(`{}`)))
	require.NoError(t, kv.Set(ctx, "weddingsync_settings", []byte(`{"accounts":[]}`)))
	require.NoError(t, kv.Set(ctx, "weddingsync_xsettings", []byte(`1`)))
	require.NoError(t, kv.Set(ctx, "unrelated", []byte(`1`)))

	val, ok, err := kv.Get(ctx, "weddingsync_settings")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"accounts":[]}`, string(val))

	keys, err := kv.Keys(ctx, "weddingsync_settings")
	require.NoError(t, err)
	assert.Equal(t, []string{"weddingsync_settings"}, keys)

	require.NoError(t, kv.Delete(ctx, "weddingsync_settings"))
	_, ok, err = kv.Get(ctx, "weddingsync_settings")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, kv.Ping(ctx))
}
