package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uni-plan/timetable-api/internal/models"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
)

type curriculumRepoStub struct {
	curricula map[string]models.Curriculum
	rows      []models.CurriculumSubjectRow
}

func (s *curriculumRepoStub) FindByID(ctx context.Context, id string) (*models.Curriculum, error) {
	if c, ok := s.curricula[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (s *curriculumRepoStub) ListSemesterSubjects(ctx context.Context, curriculumID, semesterID string) ([]models.CurriculumSubjectRow, error) {
	var out []models.CurriculumSubjectRow
	for _, row := range s.rows {
		if row.CurriculumID == curriculumID && row.SemesterID == semesterID {
			out = append(out, row)
		}
	}
	return out, nil
}

type nameResolverStub struct{ names map[string]string }

func (s *nameResolverStub) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func curriculumFixtureRows() []models.CurriculumSubjectRow {
	return []models.CurriculumSubjectRow{
		{CurriculumID: "cur-1", SemesterID: "sem-1", SubjectID: "sub-1", LecturerID: "lect-1", SessionType: "wyklad", Hours: 3, Credits: 5, Position: 1},
		{CurriculumID: "cur-1", SemesterID: "sem-1", SubjectID: "sub-1", LecturerID: "lect-2", SessionType: "cwiczenia", Hours: 1.5, Credits: 0, Position: 2},
	}
}

func newCurriculumFixture(entries *entryRepoStub, timetables *timetableLookupStub) *CurriculumService {
	repo := &curriculumRepoStub{
		curricula: map[string]models.Curriculum{"cur-1": {ID: "cur-1", Name: "Informatyka"}},
		rows:      curriculumFixtureRows(),
	}
	subjects := &nameResolverStub{names: map[string]string{"sub-1": "Algorytmy i struktury danych"}}
	lecturers := &nameResolverStub{names: map[string]string{"lect-1": "dr Jan Kowalski", "lect-2": "mgr Anna Nowak"}}
	return NewCurriculumService(repo, subjects, lecturers, entries, timetables, nil, nil, 1.5)
}

func TestCurriculumResolveBuildsPool(t *testing.T) {
	svc := newCurriculumFixture(newEntryRepoStub(), &timetableLookupStub{})

	pool, err := svc.Resolve(context.Background(), "cur-1", "sem-1")
	require.NoError(t, err)
	require.Len(t, pool, 2)

	assert.Equal(t, "sub-1:wyklad:1", pool[0].Ref)
	assert.Equal(t, "Algorytmy i struktury danych", pool[0].SubjectName)
	assert.Equal(t, "dr Jan Kowalski", pool[0].LecturerName)
	assert.Equal(t, 3.0, pool[0].RequiredHours)
	assert.Equal(t, "sub-1:cwiczenia:2", pool[1].Ref)
	assert.Equal(t, "mgr Anna Nowak", pool[1].LecturerName)
}

func TestCurriculumResolveUnknownCurriculum(t *testing.T) {
	svc := newCurriculumFixture(newEntryRepoStub(), &timetableLookupStub{})

	_, err := svc.Resolve(context.Background(), "cur-missing", "sem-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCurriculumResolveEmptySemesterEntry(t *testing.T) {
	svc := newCurriculumFixture(newEntryRepoStub(), &timetableLookupStub{})

	_, err := svc.Resolve(context.Background(), "cur-1", "sem-other")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCurriculumResolveDropsUnresolvableSubject(t *testing.T) {
	repo := &curriculumRepoStub{
		curricula: map[string]models.Curriculum{"cur-1": {ID: "cur-1"}},
		rows: append(curriculumFixtureRows(), models.CurriculumSubjectRow{
			CurriculumID: "cur-1", SemesterID: "sem-1", SubjectID: "sub-ghost", LecturerID: "lect-1", SessionType: "wyklad", Position: 3,
		}),
	}
	subjects := &nameResolverStub{names: map[string]string{"sub-1": "Algorytmy i struktury danych"}}
	lecturers := &nameResolverStub{names: map[string]string{"lect-1": "dr Jan Kowalski", "lect-2": "mgr Anna Nowak"}}
	svc := NewCurriculumService(repo, subjects, lecturers, newEntryRepoStub(), &timetableLookupStub{}, nil, nil, 1.5)

	pool, err := svc.Resolve(context.Background(), "cur-1", "sem-1")
	require.NoError(t, err)
	assert.Len(t, pool, 2)
}

func TestCurriculumResolveForTimetableAccountsHours(t *testing.T) {
	entries := newEntryRepoStub()
	entries.entries["e1"] = models.ScheduleEntry{ID: "e1", TimetableID: "tt-1", SubjectRef: "sub-1:wyklad:1"}
	entries.entries["e2"] = models.ScheduleEntry{ID: "e2", TimetableID: "tt-1", SubjectRef: "sub-1:wyklad:1"}
	entries.entries["e3"] = models.ScheduleEntry{ID: "e3", TimetableID: "tt-1", SubjectRef: "sub-1:cwiczenia:2"}
	entries.entries["e4"] = models.ScheduleEntry{ID: "e4", TimetableID: "tt-other", SubjectRef: "sub-1:wyklad:1"}
	timetables := &timetableLookupStub{timetables: map[string]models.Timetable{
		"tt-1": {ID: "tt-1", CurriculumID: "cur-1", SemesterID: "sem-1"},
	}}
	svc := newCurriculumFixture(entries, timetables)

	pool, err := svc.ResolveForTimetable(context.Background(), "tt-1")
	require.NoError(t, err)
	require.Len(t, pool, 2)

	// Two placed blocks of 1.5h against 3 required hours.
	assert.Equal(t, 3.0, pool[0].ScheduledHours)
	assert.True(t, pool[0].FullyScheduled)
	// One block against 1.5 required.
	assert.Equal(t, 1.5, pool[1].ScheduledHours)
	assert.True(t, pool[1].FullyScheduled)
}

func TestCurriculumResolveForTimetablePartialScheduling(t *testing.T) {
	entries := newEntryRepoStub()
	entries.entries["e1"] = models.ScheduleEntry{ID: "e1", TimetableID: "tt-1", SubjectRef: "sub-1:wyklad:1"}
	timetables := &timetableLookupStub{timetables: map[string]models.Timetable{
		"tt-1": {ID: "tt-1", CurriculumID: "cur-1", SemesterID: "sem-1"},
	}}
	svc := newCurriculumFixture(entries, timetables)

	pool, err := svc.ResolveForTimetable(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, pool[0].ScheduledHours)
	assert.False(t, pool[0].FullyScheduled)
	assert.Zero(t, pool[1].ScheduledHours)
}

func TestCurriculumResolveForTimetableUnknownTimetable(t *testing.T) {
	svc := newCurriculumFixture(newEntryRepoStub(), &timetableLookupStub{timetables: map[string]models.Timetable{}})

	_, err := svc.ResolveForTimetable(context.Background(), "tt-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubjectRefComposite(t *testing.T) {
	assert.Equal(t, "sub-1:wyklad:1", SubjectRef("sub-1", "wyklad", 1))
}
