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

func newMeetingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var meetingColumnNames = []string{"id", "period_id", "subject_id", "teacher_id", "section_id", "room_id", "days", "start_time", "end_time", "duration", "load_units", "created_at", "updated_at"}

func TestMeetingRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	rows := sqlmock.NewRows(meetingColumnNames).
		AddRow("m1", "p1", "s1", "t1", "sec1", "r1", "TTh", "09:00", "10:30", "1:30", 3, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND m.period_id = $1 AND m.room_id = $2 ORDER BY m.created_at ASC")).
		WithArgs("p1", "r1").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), nil, models.MeetingFilter{PeriodID: "p1", RoomID: "r1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NewDaySet(models.Tuesday, models.Thursday), list[0].Days)
	assert.Equal(t, 3, list[0].LoadUnits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryListDetailed(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	columns := append(append([]string{}, meetingColumnNames...), "subject_code", "subject_name", "teacher_name", "section_name", "room_name", "room_type")
	rows := sqlmock.NewRows(columns).
		AddRow("m1", "p1", "s1", "t1", "sec1", "r1", "MWF", "08:00", "09:00", "1:00", 2, time.Now(), time.Now(),
			"CS101", "Intro", "Ana Cruz", "BSCS-1A", "R101", "Lec")
	mock.ExpectQuery("JOIN rooms r ON r.id = m.room_id").
		WithArgs("p1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	list, err := repo.ListDetailed(context.Background(), models.MeetingFilter{PeriodID: "p1", TeacherIDs: []string{"t1"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "CS101", list[0].SubjectCode)
	assert.Equal(t, models.RoomTypeLecture, list[0].RoomType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectExec("INSERT INTO meetings").
		WithArgs(sqlmock.AnyArg(), "p1", "s1", "t1", "sec1", "r1", "MWF", "08:00", "09:00", "1:00", 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	meeting := &models.Meeting{
		PeriodID: "p1", SubjectID: "s1", TeacherID: "t1", SectionID: "sec1", RoomID: "r1",
		Days: models.MustParseDaySet("MWF"), StartTime: "08:00", EndTime: "09:00", Duration: "1:00", LoadUnits: 3,
	}
	require.NoError(t, repo.Create(context.Background(), nil, meeting))
	assert.NotEmpty(t, meeting.ID)
	assert.False(t, meeting.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM meetings WHERE id = $1")).
		WithArgs("m404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), nil, "m404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectExec("UPDATE meetings SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	meeting := &models.Meeting{ID: "m1", TeacherID: "t2", Days: models.MustParseDaySet("S")}
	require.NoError(t, repo.Update(context.Background(), nil, meeting))
	assert.False(t, meeting.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryDeleteByPeriod(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM meetings WHERE period_id = $1 AND teacher_id = ANY($2)")).
		WithArgs("p1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM meetings WHERE period_id = $1")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 9))

	n, err := repo.DeleteByPeriod(context.Background(), nil, "p1", []string{"t1"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	n, err = repo.DeleteByPeriod(context.Background(), nil, "p1", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 9, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingObserver struct {
	labels []string
}

func (o *recordingObserver) ObserveDBQuery(label string, _ time.Duration) {
	o.labels = append(o.labels, label)
}

func TestMeetingRepositoryReportsQueryTimings(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	observer := &recordingObserver{}
	repo := NewMeetingRepository(db).WithObserver(observer)

	mock.ExpectQuery("FROM meetings m WHERE").WillReturnRows(sqlmock.NewRows(meetingColumnNames))
	mock.ExpectExec("DELETE FROM meetings WHERE period_id").WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.List(context.Background(), nil, models.MeetingFilter{})
	require.NoError(t, err)
	_, err = repo.DeleteByPeriod(context.Background(), nil, "p1", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"meetings.list", "meetings.delete_by_period"}, observer.labels)
	assert.NoError(t, mock.ExpectationsWereMet())
}
