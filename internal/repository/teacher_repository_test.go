package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnuel1/spacio-backend/internal/models"
)

func newTeacherRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func teacherRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "full_name", "email", "position", "specializations", "avail_days", "pref_start", "pref_end", "current_load", "max_load", "created_at", "updated_at"})
}

func TestTeacherRepositoryList(t *testing.T) {
	db, mock, cleanup := newTeacherRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	rows := teacherRows().
		AddRow("t1", "Ana Cruz", "ana@example.com", "Full-time", "{Math,Physics}", "MWF", "08:00", "17:00", 6, 0, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers ORDER BY id ASC")).WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.TeacherFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.MustParseDaySet("MWF"), list[0].AvailDays)
	assert.True(t, list[0].HasSpecialization("Physics"))
	assert.Equal(t, 24, list[0].EffectiveMaxLoad())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newTeacherRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE id = ANY($1) ORDER BY id ASC")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(teacherRows())

	list, err := repo.List(context.Background(), models.TeacherFilter{IDs: []string{"t1", "t2"}})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryFindByIDLocksInsideTransaction(t *testing.T) {
	db, mock, cleanup := newTeacherRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE id = $1 FOR UPDATE")).
		WithArgs("t1").
		WillReturnRows(teacherRows().AddRow("t1", "Ana Cruz", "ana@example.com", "Dean", "{}", "", "", "", 0, 0, time.Now(), time.Now()))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	teacher, err := repo.FindByID(context.Background(), tx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 15, teacher.EffectiveMaxLoad())
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newTeacherRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTeacherRepositoryLoadBookkeeping(t *testing.T) {
	db, mock, cleanup := newTeacherRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET current_load = GREATEST(current_load + $2, 0)")).
		WithArgs("t1", -3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET current_load = $2")).
		WithArgs("t1", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET current_load = 0, updated_at = $1 WHERE id = ANY($2)")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE teachers SET current_load = 0, updated_at = $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 5))

	ctx := context.Background()
	require.NoError(t, repo.AdjustLoad(ctx, nil, "t1", -3))
	require.NoError(t, repo.SetLoad(ctx, nil, "t1", -4))
	require.NoError(t, repo.ResetLoads(ctx, nil, []string{"t1", "t2"}))
	require.NoError(t, repo.ResetLoads(ctx, nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
