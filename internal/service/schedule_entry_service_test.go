package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uni-plan/timetable-api/internal/models"
	"github.com/uni-plan/timetable-api/internal/repository"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
)

// fakeTx satisfies repository.Tx without a database; the embedded interface
// methods are never reached by the stubs.
type fakeTx struct {
	sqlx.ExtContext
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

type entryRepoStub struct {
	entries map[string]models.ScheduleEntry
	tx      *fakeTx
	err     error
}

func newEntryRepoStub() *entryRepoStub {
	return &entryRepoStub{entries: map[string]models.ScheduleEntry{}, tx: &fakeTx{}}
}

func (s *entryRepoStub) BeginTx(ctx context.Context) (repository.Tx, error) {
	return s.tx, nil
}

func (s *entryRepoStub) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	if entry, ok := s.entries[id]; ok {
		return &entry, nil
	}
	return nil, sql.ErrNoRows
}

func (s *entryRepoStub) ListByTimetable(ctx context.Context, timetableID string) ([]models.ScheduleEntry, error) {
	var out []models.ScheduleEntry
	for _, entry := range s.entries {
		if entry.TimetableID == timetableID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *entryRepoStub) ListByLecturer(ctx context.Context, lecturerID string) ([]models.ScheduleEntry, error) {
	var out []models.ScheduleEntry
	for _, entry := range s.entries {
		if entry.LecturerID == lecturerID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *entryRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	if s.err != nil {
		return s.err
	}
	if entry.ID == "" {
		entry.ID = "entry-1"
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *entryRepoStub) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *entryRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.entries[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.entries, id)
	return nil
}

type timetableLookupStub struct {
	timetables map[string]models.Timetable
}

func (s *timetableLookupStub) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	if timetable, ok := s.timetables[id]; ok {
		return &timetable, nil
	}
	return nil, sql.ErrNoRows
}

type conflictCheckerStub struct {
	err    error
	called int
}

func (s *conflictCheckerStub) Check(ctx context.Context, exec sqlx.ExtContext, candidate *models.ScheduleEntry, ignoreID string) error {
	s.called++
	return s.err
}

type subjectDictStub struct{ subjects map[string]models.Subject }

func (s *subjectDictStub) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := s.subjects[id]; ok {
		return &subject, nil
	}
	return nil, sql.ErrNoRows
}

func (s *subjectDictStub) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	names := map[string]string{}
	for _, id := range ids {
		if subject, ok := s.subjects[id]; ok {
			names[id] = subject.Name
		}
	}
	return names, nil
}

type lecturerDictStub struct{ lecturers map[string]models.Lecturer }

func (s *lecturerDictStub) FindByID(ctx context.Context, id string) (*models.Lecturer, error) {
	if lecturer, ok := s.lecturers[id]; ok {
		return &lecturer, nil
	}
	return nil, sql.ErrNoRows
}

func (s *lecturerDictStub) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	names := map[string]string{}
	for _, id := range ids {
		if lecturer, ok := s.lecturers[id]; ok {
			names[id] = lecturer.DisplayName()
		}
	}
	return names, nil
}

type roomDictStub struct{ rooms map[string]models.Room }

func (s *roomDictStub) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if room, ok := s.rooms[id]; ok {
		return &room, nil
	}
	return nil, sql.ErrNoRows
}

type groupDictStub struct{ names map[string]string }

func (s *groupDictStub) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	names := map[string]string{}
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			names[id] = name
		}
	}
	return names, nil
}

type entryServiceFixture struct {
	repo       *entryRepoStub
	timetables *timetableLookupStub
	conflicts  *conflictCheckerStub
	service    *ScheduleEntryService
}

func newEntryServiceFixture() *entryServiceFixture {
	repo := newEntryRepoStub()
	timetables := &timetableLookupStub{timetables: map[string]models.Timetable{
		"tt-draft":     {ID: "tt-draft", Status: models.TimetableStatusDraft, StudyMode: models.StudyModeStacjonarne},
		"tt-published": {ID: "tt-published", Status: models.TimetableStatusPublished, StudyMode: models.StudyModeStacjonarne},
		"tt-archived":  {ID: "tt-archived", Status: models.TimetableStatusArchived, StudyMode: models.StudyModeStacjonarne},
		"tt-session":   {ID: "tt-session", Status: models.TimetableStatusDraft, StudyMode: models.StudyModeNiestacjonarne},
	}}
	conflicts := &conflictCheckerStub{}
	subjects := &subjectDictStub{subjects: map[string]models.Subject{
		"sub-1": {ID: "sub-1", Name: "Algorytmy i struktury danych"},
	}}
	lecturers := &lecturerDictStub{lecturers: map[string]models.Lecturer{
		"lect-1": {ID: "lect-1", Title: "dr", FullName: "Jan Kowalski"},
	}}
	rooms := &roomDictStub{rooms: map[string]models.Room{
		"room-1": {ID: "room-1", Name: "A101"},
	}}
	groups := &groupDictStub{names: map[string]string{"g1": "INF-1"}}

	svc := NewScheduleEntryService(repo, timetables, conflicts, subjects, lecturers, rooms, groups, nil, nil, nil, 90)
	return &entryServiceFixture{repo: repo, timetables: timetables, conflicts: conflicts, service: svc}
}

func validCreateRequest() CreateScheduleEntryRequest {
	return CreateScheduleEntryRequest{
		TimetableID: "tt-draft",
		DayOfWeek:   "MONDAY",
		StartTime:   "08:00",
		SubjectID:   "sub-1",
		SubjectRef:  "sub-1:wyklad:1",
		LecturerID:  "lect-1",
		SessionType: "wyklad",
		RoomID:      "room-1",
		GroupIDs:    []string{"g1"},
	}
}

func TestScheduleEntryCreateResolvesNamesAndEndTime(t *testing.T) {
	f := newEntryServiceFixture()

	entry, err := f.service.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "09:30", entry.EndTime)
	assert.Equal(t, "Algorytmy i struktury danych", entry.SubjectName)
	assert.Equal(t, "dr Jan Kowalski", entry.LecturerName)
	assert.Equal(t, "A101", entry.RoomName)
	assert.Equal(t, []string{"INF-1"}, []string(entry.GroupNames))
	assert.Equal(t, 1, f.conflicts.called)
	assert.True(t, f.repo.tx.committed)
}

func TestScheduleEntryCreatePublishedTimetableRejected(t *testing.T) {
	f := newEntryServiceFixture()
	req := validCreateRequest()
	req.TimetableID = "tt-published"

	_, err := f.service.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTimetablePublished.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.conflicts.called)
	assert.Empty(t, f.repo.entries)
}

func TestScheduleEntryCreateArchivedTimetableAllowed(t *testing.T) {
	f := newEntryServiceFixture()
	req := validCreateRequest()
	req.TimetableID = "tt-archived"

	_, err := f.service.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestScheduleEntryCreateDayOutsideStudyMode(t *testing.T) {
	f := newEntryServiceFixture()
	req := validCreateRequest()
	req.TimetableID = "tt-session"
	req.DayOfWeek = "MONDAY"

	_, err := f.service.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleEntryCreateDateOnWrongWeekdayRejected(t *testing.T) {
	f := newEntryServiceFixture()
	req := validCreateRequest()
	// 2025-10-03 is a Friday, the entry claims the Monday grid cell.
	req.Dates = []string{"2025-10-03"}

	_, err := f.service.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.entries)
}

func TestScheduleEntryCreateConflictStopsWrite(t *testing.T) {
	f := newEntryServiceFixture()
	f.conflicts.err = appErrors.Clone(appErrors.ErrRecurringCollision, "lecturer busy")

	_, err := f.service.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRecurringCollision.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.entries)
	assert.False(t, f.repo.tx.committed)
	assert.True(t, f.repo.tx.rolledBack)
}

func TestScheduleEntryCreateUnknownGroupRejected(t *testing.T) {
	f := newEntryServiceFixture()
	req := validCreateRequest()
	req.GroupIDs = []string{"g1", "g-missing"}

	_, err := f.service.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleEntryUpdateMergesAndReruns(t *testing.T) {
	f := newEntryServiceFixture()
	created, err := f.service.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	f.conflicts.called = 0

	day := "TUESDAY"
	start := "09:45"
	updated, err := f.service.Update(context.Background(), created.ID, UpdateScheduleEntryRequest{
		DayOfWeek: &day,
		StartTime: &start,
	})
	require.NoError(t, err)
	assert.Equal(t, "TUESDAY", updated.DayOfWeek)
	assert.Equal(t, "09:45", updated.StartTime)
	assert.Equal(t, "11:15", updated.EndTime)
	assert.Equal(t, created.SubjectID, updated.SubjectID)
	assert.Equal(t, 1, f.conflicts.called)
}

func TestScheduleEntryUpdateClearsDatesToWeekly(t *testing.T) {
	f := newEntryServiceFixture()
	req := validCreateRequest()
	req.Dates = []string{"2025-10-06"}
	created, err := f.service.Create(context.Background(), req)
	require.NoError(t, err)
	require.False(t, created.Weekly())

	empty := []string{}
	updated, err := f.service.Update(context.Background(), created.ID, UpdateScheduleEntryRequest{Dates: &empty})
	require.NoError(t, err)
	assert.True(t, updated.Weekly())
}

func TestScheduleEntryUpdatePublishedRejected(t *testing.T) {
	f := newEntryServiceFixture()
	created, err := f.service.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	entry := f.repo.entries[created.ID]
	entry.TimetableID = "tt-published"
	f.repo.entries[created.ID] = entry

	day := "TUESDAY"
	_, err = f.service.Update(context.Background(), created.ID, UpdateScheduleEntryRequest{DayOfWeek: &day})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTimetablePublished.Code, appErrors.FromError(err).Code)
}

func TestScheduleEntryDelete(t *testing.T) {
	f := newEntryServiceFixture()
	created, err := f.service.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(context.Background(), created.ID))
	assert.Empty(t, f.repo.entries)
}

func TestScheduleEntryDeletePublishedRejected(t *testing.T) {
	f := newEntryServiceFixture()
	created, err := f.service.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	entry := f.repo.entries[created.ID]
	entry.TimetableID = "tt-published"
	f.repo.entries[created.ID] = entry

	err = f.service.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTimetablePublished.Code, appErrors.FromError(err).Code)
	assert.Len(t, f.repo.entries, 1)
}

func TestScheduleEntryDeleteNotFound(t *testing.T) {
	f := newEntryServiceFixture()
	err := f.service.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
