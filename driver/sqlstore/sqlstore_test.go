// driver/sqlstore/sqlstore_test.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/typeprefs/pkg/backends/backendtest"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
	"github.com/chmenegatti/typeprefs/pkg/config"
)

type mockDialect struct{}

func (mockDialect) Name() string          { return "mock" }
func (mockDialect) DriverName() string    { return "mockdriver" }
func (mockDialect) Quote(s string) string { return `"` + s + `"` }
func (mockDialect) BindVar(i int) string  { return fmt.Sprintf("$%d", i) }
func (d mockDialect) CreateTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE %s (pref_key TEXT, pref_value INTEGER)", d.Quote(table))
}
func (d mockDialect) UpsertSQL(table string) string {
	return fmt.Sprintf("UPSERT %s ($1, $2)", d.Quote(table))
}

var _ Dialect = mockDialect{}

func newMockBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`CREATE TABLE "prefs" (pref_key TEXT, pref_value INTEGER)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	b, err := NewWithDB(context.Background(), mockDialect{}, db, "prefs")
	require.NoError(t, err)
	return b, mock
}

func TestStatements(t *testing.T) {
	d := mockDialect{}
	assert.Equal(t, `SELECT pref_value FROM "prefs" WHERE pref_key = $1`, SelectSQL(d, "prefs"))
	assert.Equal(t, `DELETE FROM "prefs" WHERE pref_key = $1`, DeleteSQL(d, "prefs"))
	assert.Equal(t, `SELECT pref_key FROM "prefs" ORDER BY pref_key ASC`, KeysSQL(d, "prefs"))
}

func TestBackend_GetInt(t *testing.T) {
	b, mock := newMockBackend(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT pref_value FROM "prefs" WHERE pref_key = $1`).
		WithArgs("robot.speed").
		WillReturnRows(sqlmock.NewRows([]string{"pref_value"}).AddRow(int64(42)))
	v, found, err := b.GetInt(ctx, "robot.speed")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42, v)

	mock.ExpectQuery(`SELECT pref_value FROM "prefs" WHERE pref_key = $1`).
		WithArgs("robot.missing").
		WillReturnRows(sqlmock.NewRows([]string{"pref_value"}))
	_, found, err = b.GetInt(ctx, "robot.missing")
	require.NoError(t, err)
	assert.False(t, found)

	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT pref_value FROM "prefs" WHERE pref_key = $1`).
		WithArgs("robot.speed").
		WillReturnError(boom)
	_, _, err = b.GetInt(ctx, "robot.speed")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "mock: get 'robot.speed'")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackend_PutDeleteKeys(t *testing.T) {
	b, mock := newMockBackend(t)
	ctx := context.Background()

	mock.ExpectExec(`UPSERT "prefs" ($1, $2)`).
		WithArgs("audio.volume", int64(80)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, b.PutInt(ctx, "audio.volume", 80))

	mock.ExpectExec(`DELETE FROM "prefs" WHERE pref_key = $1`).
		WithArgs("audio.volume").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, b.Delete(ctx, "audio.volume"))

	mock.ExpectQuery(`SELECT pref_key FROM "prefs" ORDER BY pref_key ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"pref_key"}).AddRow("a.x").AddRow("b.y"))
	keys, err := b.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.x", "b.y"}, keys)

	mock.ExpectQuery(`SELECT pref_key FROM "prefs" ORDER BY pref_key ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"pref_key"}).AddRow("a.x").RowError(0, sql.ErrConnDone))
	_, err = b.Keys(ctx)
	assert.ErrorIs(t, err, sql.ErrConnDone)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackend_CreateTableFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE "prefs" (pref_key TEXT, pref_value INTEGER)`).
		WillReturnError(errors.New("permission denied"))
	_, err = NewWithDB(context.Background(), mockDialect{}, db, "prefs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create table 'prefs'")

	_, err = NewWithDB(context.Background(), mockDialect{}, db, "")
	assert.ErrorContains(t, err, "table name is required")
}

func TestBackend_OpenAndClose(t *testing.T) {
	b, mock := newMockBackend(t)

	err := b.Open(config.StoreConfig{DSN: "anything", Table: "prefs"})
	assert.ErrorIs(t, err, common.ErrAlreadyOpen)

	assert.ErrorContains(t, New(mockDialect{}).Open(config.StoreConfig{}), "DSN is required")

	mock.ExpectClose()
	require.NoError(t, b.Close())
	require.NoError(t, mock.ExpectationsWereMet())

	backendtest.RunClosed(t, b)
}
