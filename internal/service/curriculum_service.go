package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/uni-plan/timetable-api/internal/models"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
)

type curriculumRepository interface {
	FindByID(ctx context.Context, id string) (*models.Curriculum, error)
	ListSemesterSubjects(ctx context.Context, curriculumID, semesterID string) ([]models.CurriculumSubjectRow, error)
}

type nameResolver interface {
	NamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

type poolEntryRepository interface {
	ListByTimetable(ctx context.Context, timetableID string) ([]models.ScheduleEntry, error)
}

// CurriculumService resolves a curriculum's semester entry into the pool of
// required teaching assignments and tracks how much of each is scheduled.
type CurriculumService struct {
	repo       curriculumRepository
	subjects   nameResolver
	lecturers  nameResolver
	entries    poolEntryRepository
	timetables entryTimetableRepository
	cache      *CacheService
	logger     *zap.Logger
	blockHours float64
}

// NewCurriculumService constructs CurriculumService.
func NewCurriculumService(repo curriculumRepository, subjects, lecturers nameResolver, entries poolEntryRepository, timetables entryTimetableRepository, cache *CacheService, logger *zap.Logger, blockHours float64) *CurriculumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if blockHours <= 0 {
		blockHours = models.DefaultBlockHours
	}
	return &CurriculumService{
		repo:       repo,
		subjects:   subjects,
		lecturers:  lecturers,
		entries:    entries,
		timetables: timetables,
		cache:      cache,
		logger:     logger,
		blockHours: blockHours,
	}
}

// Resolve flattens one curriculum semester entry into ordered
// CurriculumSubject rows with display names joined in. Rows whose subject
// cannot be resolved in the dictionary are dropped, not fatal.
func (s *CurriculumService) Resolve(ctx context.Context, curriculumID, semesterID string) ([]models.CurriculumSubject, error) {
	if _, err := s.repo.FindByID(ctx, curriculumID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "curriculum not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}

	rows, err := s.repo.ListSemesterSubjects(ctx, curriculumID, semesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum subjects")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "curriculum has no entry for this semester")
	}

	subjectIDs := make([]string, 0, len(rows))
	lecturerIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		subjectIDs = append(subjectIDs, row.SubjectID)
		lecturerIDs = append(lecturerIDs, row.LecturerID)
	}
	subjectNames, err := s.subjects.NamesByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve subject names")
	}
	lecturerNames, err := s.lecturers.NamesByIDs(ctx, lecturerIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve lecturer names")
	}

	pool := make([]models.CurriculumSubject, 0, len(rows))
	for _, row := range rows {
		subjectName, ok := subjectNames[row.SubjectID]
		if !ok {
			s.logger.Warn("dropping curriculum subject with unresolvable subject reference",
				zap.String("curriculum_id", curriculumID),
				zap.String("semester_id", semesterID),
				zap.String("subject_id", row.SubjectID))
			continue
		}
		pool = append(pool, models.CurriculumSubject{
			Ref:           SubjectRef(row.SubjectID, row.SessionType, row.Position),
			SubjectID:     row.SubjectID,
			SubjectName:   subjectName,
			LecturerID:    row.LecturerID,
			LecturerName:  lecturerNames[row.LecturerID],
			SessionType:   row.SessionType,
			RequiredHours: row.Hours,
			Credits:       row.Credits,
		})
	}
	return pool, nil
}

// ResolveForTimetable resolves the pool for a timetable's curriculum and
// semester, then folds the already placed entries into per-subject scheduled
// hours. Over-scheduling is allowed; FullyScheduled is a display hint, not a
// cap.
func (s *CurriculumService) ResolveForTimetable(ctx context.Context, timetableID string) ([]models.CurriculumSubject, error) {
	cacheKey := fmt.Sprintf("timetable:%s:pool", timetableID)
	var cached []models.CurriculumSubject
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	timetable, err := s.timetables.FindByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	pool, err := s.Resolve(ctx, timetable.CurriculumID, timetable.SemesterID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule entries")
	}
	scheduled := make(map[string]float64, len(pool))
	for i := range entries {
		if entries[i].SubjectRef == "" {
			continue
		}
		scheduled[entries[i].SubjectRef] += s.blockHours
	}
	for i := range pool {
		pool[i].ScheduledHours = scheduled[pool[i].Ref]
		pool[i].FullyScheduled = pool[i].ScheduledHours >= pool[i].RequiredHours
	}

	if err := s.cache.Set(ctx, cacheKey, pool, 0); err != nil {
		s.logger.Warn("failed to cache assignment pool", zap.String("timetable_id", timetableID), zap.Error(err))
	}
	return pool, nil
}

// SubjectRef derives the stable identifier that ties a placed entry back to
// its curriculum row. Position keeps duplicate subject/type pairs apart.
func SubjectRef(subjectID, sessionType string, position int) string {
	return fmt.Sprintf("%s:%s:%d", subjectID, sessionType, position)
}
