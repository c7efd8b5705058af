package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uni-plan/timetable-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func timetableRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "status", "curriculum_id", "semester_id", "group_ids",
		"study_mode", "cadence", "created_at", "updated_at",
	})
}

func TestTimetableRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)
	rows := timetableRows().
		AddRow("tt-1", "Informatyka sem. 3", "draft", "cur-1", "sem-1", "{g1,g2}",
			"stacjonarne", nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM timetables WHERE id").
		WithArgs("tt-1").
		WillReturnRows(rows)

	timetable, err := repo.FindByID(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, "Informatyka sem. 3", timetable.Name)
	assert.Equal(t, models.TimetableStatusDraft, timetable.Status)
	assert.Equal(t, []string{"g1", "g2"}, []string(timetable.GroupIDs))
}

func TestTimetableRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)
	mock.ExpectQuery("SELECT (.+) FROM timetables WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTimetableRepositoryStatusesByIDs(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)
	rows := sqlmock.NewRows([]string{"id", "status"}).
		AddRow("tt-1", "draft").
		AddRow("tt-2", "archived")
	mock.ExpectQuery("SELECT id, status FROM timetables WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	refs, err := repo.StatusesByIDs(context.Background(), nil, []string{"tt-1", "tt-2"})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, models.TimetableStatusArchived, refs[1].Status)
}

func TestTimetableRepositoryStatusesByIDsEmptyInput(t *testing.T) {
	db, _, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)
	refs, err := repo.StatusesByIDs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, refs)
}

func TestTimetableRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)
	mock.ExpectExec("INSERT INTO timetables").
		WillReturnResult(sqlmock.NewResult(1, 1))

	timetable := &models.Timetable{
		Name:         "Informatyka sem. 3",
		CurriculumID: "cur-1",
		SemesterID:   "sem-1",
		GroupIDs:     []string{"g1"},
		StudyMode:    models.StudyModeStacjonarne,
	}
	require.NoError(t, repo.Create(context.Background(), timetable))
	assert.NotEmpty(t, timetable.ID)
	assert.Equal(t, models.TimetableStatusDraft, timetable.Status)
}

func TestTimetableRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)
	mock.ExpectExec("UPDATE timetables SET status").
		WithArgs(models.TimetableStatusPublished, sqlmock.AnyArg(), "tt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "tt-1", models.TimetableStatusPublished))
}

func TestTimetableRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)
	mock.ExpectExec("UPDATE timetables SET status").
		WithArgs(models.TimetableStatusPublished, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.TimetableStatusPublished)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

// recordingArg captures the driver value bound at its position so the test
// can assert it after the call, when generated ids are known.
type recordingArg struct {
	values []driver.Value
}

func (a *recordingArg) Match(v driver.Value) bool {
	a.values = append(a.values, v)
	return true
}

func TestTimetableRepositoryCopyRewritesEntryOwnership(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)

	sourceRows := timetableRows().
		AddRow("tt-1", "source plan", "published", "cur-1", "sem-1", "{g1}",
			"stacjonarne", nil, time.Now(), time.Now())
	entryRows := scheduleEntryRows()
	addEntryRow(entryRows, "e1", "tt-1", "MONDAY", "08:00")
	addEntryRow(entryRows, "e2", "tt-1", "MONDAY", "09:45")

	clonedIDs := &recordingArg{}
	clonedOwners := &recordingArg{}
	entryArgs := make([]driver.Value, 20)
	entryArgs[0] = clonedIDs
	entryArgs[1] = clonedOwners
	for i := 2; i < len(entryArgs); i++ {
		entryArgs[i] = sqlmock.AnyArg()
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM timetables WHERE id").
		WithArgs("tt-1").
		WillReturnRows(sourceRows)
	mock.ExpectExec("INSERT INTO timetables").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT (.+) FROM schedule_entries WHERE timetable_id").
		WithArgs("tt-1").
		WillReturnRows(entryRows)
	mock.ExpectExec("INSERT INTO schedule_entries").
		WithArgs(entryArgs...).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO schedule_entries").
		WithArgs(entryArgs...).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	clone, err := repo.Copy(context.Background(), "tt-1", "working copy")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.NotEqual(t, "tt-1", clone.ID)
	assert.Equal(t, "working copy", clone.Name)
	assert.Equal(t, models.TimetableStatusDraft, clone.Status)
	assert.Equal(t, "cur-1", clone.CurriculumID)

	// Both cloned entries point at the clone, under fresh ids.
	require.Len(t, clonedOwners.values, 2)
	assert.Equal(t, clone.ID, clonedOwners.values[0])
	assert.Equal(t, clone.ID, clonedOwners.values[1])
	require.Len(t, clonedIDs.values, 2)
	assert.NotEqual(t, "e1", clonedIDs.values[0])
	assert.NotEqual(t, "e2", clonedIDs.values[1])
}

func TestTimetableRepositoryCopyUnknownSource(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM timetables WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Copy(context.Background(), "missing", "working copy")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTimetableRepositoryDeleteCascade(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM schedule_entries WHERE timetable_id").
		WithArgs("tt-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM timetables WHERE id").
		WithArgs("tt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteCascade(context.Background(), "tt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteCascadeNotFound(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()

	repo := NewTimetableRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM schedule_entries WHERE timetable_id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM timetables WHERE id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeleteCascade(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
