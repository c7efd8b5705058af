package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uni-plan/timetable-api/internal/models"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
)

type timetableRepoStub struct {
	timetables map[string]models.Timetable
	nextID     int
}

func newTimetableRepoStub(seed ...models.Timetable) *timetableRepoStub {
	s := &timetableRepoStub{timetables: map[string]models.Timetable{}}
	for _, t := range seed {
		s.timetables[t.ID] = t
	}
	return s
}

func (s *timetableRepoStub) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	var out []models.Timetable
	for _, t := range s.timetables {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (s *timetableRepoStub) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	if t, ok := s.timetables[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (s *timetableRepoStub) Create(ctx context.Context, timetable *models.Timetable) error {
	s.nextID++
	timetable.ID = fmt.Sprintf("tt-%d", s.nextID)
	s.timetables[timetable.ID] = *timetable
	return nil
}

func (s *timetableRepoStub) Update(ctx context.Context, timetable *models.Timetable) error {
	if _, ok := s.timetables[timetable.ID]; !ok {
		return sql.ErrNoRows
	}
	s.timetables[timetable.ID] = *timetable
	return nil
}

func (s *timetableRepoStub) UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error {
	t, ok := s.timetables[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.Status = status
	s.timetables[id] = t
	return nil
}

func (s *timetableRepoStub) Copy(ctx context.Context, sourceID, name string) (*models.Timetable, error) {
	source, ok := s.timetables[sourceID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	s.nextID++
	clone := source
	clone.ID = fmt.Sprintf("tt-%d", s.nextID)
	clone.Name = name
	clone.Status = models.TimetableStatusDraft
	s.timetables[clone.ID] = clone
	return &clone, nil
}

func (s *timetableRepoStub) DeleteCascade(ctx context.Context, id string) error {
	if _, ok := s.timetables[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.timetables, id)
	return nil
}

type curriculumReaderStub struct{ curricula map[string]models.Curriculum }

func (s *curriculumReaderStub) FindByID(ctx context.Context, id string) (*models.Curriculum, error) {
	if c, ok := s.curricula[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type semesterReaderStub struct{ semesters map[string]models.Semester }

func (s *semesterReaderStub) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if sem, ok := s.semesters[id]; ok {
		return &sem, nil
	}
	return nil, sql.ErrNoRows
}

func newTimetableService(repo *timetableRepoStub) *TimetableService {
	curricula := &curriculumReaderStub{curricula: map[string]models.Curriculum{"cur-1": {ID: "cur-1"}}}
	semesters := &semesterReaderStub{semesters: map[string]models.Semester{"sem-1": {ID: "sem-1"}}}
	return NewTimetableService(repo, curricula, semesters, nil, nil, nil)
}

func validTimetableRequest() CreateTimetableRequest {
	return CreateTimetableRequest{
		Name:         "Informatyka sem. 3",
		CurriculumID: "cur-1",
		SemesterID:   "sem-1",
		GroupIDs:     []string{"g1"},
		StudyMode:    models.StudyModeStacjonarne,
	}
}

func TestTimetableCreateStartsAsDraft(t *testing.T) {
	repo := newTimetableRepoStub()
	svc := newTimetableService(repo)

	created, err := svc.Create(context.Background(), validTimetableRequest())
	require.NoError(t, err)
	assert.Equal(t, models.TimetableStatusDraft, created.Status)
	assert.NotEmpty(t, created.ID)
}

func TestTimetableCreateUnknownCurriculum(t *testing.T) {
	svc := newTimetableService(newTimetableRepoStub())
	req := validTimetableRequest()
	req.CurriculumID = "cur-missing"

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableCreateUnknownSemester(t *testing.T) {
	svc := newTimetableService(newTimetableRepoStub())
	req := validTimetableRequest()
	req.SemesterID = "sem-missing"

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableCreateRejectsUnknownStudyMode(t *testing.T) {
	svc := newTimetableService(newTimetableRepoStub())
	req := validTimetableRequest()
	req.StudyMode = "wieczorowe"

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableCreateRequiresGroups(t *testing.T) {
	svc := newTimetableService(newTimetableRepoStub())
	req := validTimetableRequest()
	req.GroupIDs = nil

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableUpdateKeepsBindings(t *testing.T) {
	repo := newTimetableRepoStub(models.Timetable{
		ID: "tt-1", Name: "old", CurriculumID: "cur-1", SemesterID: "sem-1",
		Status: models.TimetableStatusDraft, StudyMode: models.StudyModeStacjonarne,
	})
	svc := newTimetableService(repo)

	name := "new name"
	updated, err := svc.Update(context.Background(), "tt-1", UpdateTimetableRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "new name", updated.Name)
	assert.Equal(t, "cur-1", updated.CurriculumID)
	assert.Equal(t, "sem-1", updated.SemesterID)
}

func TestTimetableStatusTransitions(t *testing.T) {
	cases := []struct {
		from    models.TimetableStatus
		to      models.TimetableStatus
		allowed bool
	}{
		{models.TimetableStatusDraft, models.TimetableStatusPublished, true},
		{models.TimetableStatusDraft, models.TimetableStatusArchived, true},
		{models.TimetableStatusPublished, models.TimetableStatusDraft, true},
		{models.TimetableStatusPublished, models.TimetableStatusArchived, true},
		{models.TimetableStatusArchived, models.TimetableStatusDraft, true},
		{models.TimetableStatusArchived, models.TimetableStatusPublished, false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", tc.from, tc.to), func(t *testing.T) {
			repo := newTimetableRepoStub(models.Timetable{ID: "tt-1", Status: tc.from})
			svc := newTimetableService(repo)

			updated, err := svc.UpdateStatus(context.Background(), "tt-1", tc.to)
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, tc.to, updated.Status)
				assert.Equal(t, tc.to, repo.timetables["tt-1"].Status)
			} else {
				require.Error(t, err)
				assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
				assert.Equal(t, tc.from, repo.timetables["tt-1"].Status)
			}
		})
	}
}

func TestTimetableStatusSameStatusNoOp(t *testing.T) {
	repo := newTimetableRepoStub(models.Timetable{ID: "tt-1", Status: models.TimetableStatusPublished})
	svc := newTimetableService(repo)

	updated, err := svc.UpdateStatus(context.Background(), "tt-1", models.TimetableStatusPublished)
	require.NoError(t, err)
	assert.Equal(t, models.TimetableStatusPublished, updated.Status)
}

func TestTimetableStatusRejectsUnknownValue(t *testing.T) {
	svc := newTimetableService(newTimetableRepoStub(models.Timetable{ID: "tt-1", Status: models.TimetableStatusDraft}))

	_, err := svc.UpdateStatus(context.Background(), "tt-1", "frozen")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableCopyCreatesDraftClone(t *testing.T) {
	repo := newTimetableRepoStub(models.Timetable{ID: "tt-1", Name: "source", Status: models.TimetableStatusPublished})
	svc := newTimetableService(repo)

	clone, err := svc.Copy(context.Background(), "tt-1", CopyTimetableRequest{Name: "working copy"})
	require.NoError(t, err)
	assert.NotEqual(t, "tt-1", clone.ID)
	assert.Equal(t, "working copy", clone.Name)
	assert.Equal(t, models.TimetableStatusDraft, clone.Status)
}

func TestTimetableDeleteNotFound(t *testing.T) {
	svc := newTimetableService(newTimetableRepoStub())
	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
