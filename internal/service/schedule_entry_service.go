package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/uni-plan/timetable-api/internal/models"
	"github.com/uni-plan/timetable-api/internal/repository"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
)

type scheduleEntryRepository interface {
	BeginTx(ctx context.Context) (repository.Tx, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]models.ScheduleEntry, error)
	ListByLecturer(ctx context.Context, lecturerID string) ([]models.ScheduleEntry, error)
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error
	Update(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error
	Delete(ctx context.Context, id string) error
}

type entryTimetableRepository interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
}

type conflictChecker interface {
	Check(ctx context.Context, exec sqlx.ExtContext, candidate *models.ScheduleEntry, ignoreID string) error
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type lecturerReader interface {
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
}

type roomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type groupNameResolver interface {
	NamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

// CreateScheduleEntryRequest captures a placement payload. An empty Dates
// list makes the entry recur weekly on its weekday.
type CreateScheduleEntryRequest struct {
	TimetableID       string              `json:"timetable_id" validate:"required"`
	DayOfWeek         string              `json:"day_of_week" validate:"required"`
	StartTime         string              `json:"start_time" validate:"required"`
	SubjectID         string              `json:"subject_id" validate:"required"`
	SubjectRef        string              `json:"subject_ref"`
	LecturerID        string              `json:"lecturer_id" validate:"required"`
	SessionType       string              `json:"session_type" validate:"required"`
	RoomID            string              `json:"room_id" validate:"required"`
	GroupIDs          []string            `json:"group_ids" validate:"min=1"`
	SpecializationIDs []string            `json:"specialization_ids"`
	Dates             []string            `json:"dates"`
	Format            *models.EntryFormat `json:"format"`
}

// UpdateScheduleEntryRequest modifies entry fields. Nil fields keep their
// stored value; Dates distinguishes "keep" (nil) from "clear to weekly"
// (empty list).
type UpdateScheduleEntryRequest struct {
	DayOfWeek         *string             `json:"day_of_week"`
	StartTime         *string             `json:"start_time"`
	SubjectID         *string             `json:"subject_id"`
	SubjectRef        *string             `json:"subject_ref"`
	LecturerID        *string             `json:"lecturer_id"`
	SessionType       *string             `json:"session_type"`
	RoomID            *string             `json:"room_id"`
	GroupIDs          []string            `json:"group_ids"`
	SpecializationIDs []string            `json:"specialization_ids"`
	Dates             *[]string           `json:"dates"`
	Format            *models.EntryFormat `json:"format"`
}

// ScheduleEntryService coordinates placement of class sessions: lifecycle
// gating, dictionary name resolution and the transactional conflict check
// before every write.
type ScheduleEntryService struct {
	repo        scheduleEntryRepository
	timetables  entryTimetableRepository
	conflicts   conflictChecker
	subjects    subjectReader
	lecturers   lecturerReader
	rooms       roomReader
	groups      groupNameResolver
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	slotMinutes int
}

// NewScheduleEntryService constructs ScheduleEntryService.
func NewScheduleEntryService(repo scheduleEntryRepository, timetables entryTimetableRepository, conflicts conflictChecker, subjects subjectReader, lecturers lecturerReader, rooms roomReader, groups groupNameResolver, cache *CacheService, validate *validator.Validate, logger *zap.Logger, slotMinutes int) *ScheduleEntryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if slotMinutes <= 0 {
		slotMinutes = models.DefaultSlotMinutes
	}
	return &ScheduleEntryService{
		repo:        repo,
		timetables:  timetables,
		conflicts:   conflicts,
		subjects:    subjects,
		lecturers:   lecturers,
		rooms:       rooms,
		groups:      groups,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		slotMinutes: slotMinutes,
	}
}

// ListByTimetable returns the entries of one timetable in grid order.
func (s *ScheduleEntryService) ListByTimetable(ctx context.Context, timetableID string) ([]models.ScheduleEntry, error) {
	if _, err := s.loadTimetable(ctx, timetableID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule entries")
	}
	return entries, nil
}

// ListByLecturer returns a lecturer's entries across all non-archived
// timetables.
func (s *ScheduleEntryService) ListByLecturer(ctx context.Context, lecturerID string) ([]models.ScheduleEntry, error) {
	if _, err := s.lecturers.FindByID(ctx, lecturerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}
	entries, err := s.repo.ListByLecturer(ctx, lecturerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lecturer entries")
	}
	return entries, nil
}

// Create places a new entry. The conflict check and the insert run on one
// serializable transaction so concurrent placements cannot both pass the
// check against a stale snapshot.
func (s *ScheduleEntryService) Create(ctx context.Context, req CreateScheduleEntryRequest) (*models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule entry payload")
	}

	timetable, err := s.loadTimetable(ctx, req.TimetableID)
	if err != nil {
		return nil, err
	}
	if err := guardMutable(timetable); err != nil {
		return nil, err
	}

	entry := &models.ScheduleEntry{
		TimetableID:       req.TimetableID,
		DayOfWeek:         req.DayOfWeek,
		StartTime:         req.StartTime,
		SubjectID:         req.SubjectID,
		SubjectRef:        req.SubjectRef,
		LecturerID:        req.LecturerID,
		SessionType:       req.SessionType,
		RoomID:            req.RoomID,
		GroupIDs:          pq.StringArray(req.GroupIDs),
		SpecializationIDs: pq.StringArray(req.SpecializationIDs),
		Dates:             pq.StringArray(req.Dates),
		Format:            req.Format,
	}
	if err := s.validatePlacement(timetable, entry); err != nil {
		return nil, err
	}
	entry.EndTime, err = models.AddMinutes(entry.StartTime, s.slotMinutes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start time")
	}
	if err := s.resolveNames(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.checkAndWrite(ctx, entry, "", func(tx repository.Tx) error {
		return s.repo.Create(ctx, tx, entry)
	}); err != nil {
		return nil, err
	}

	s.invalidateTimetableCache(ctx, entry.TimetableID)
	s.logger.Info("schedule entry placed",
		zap.String("entry_id", entry.ID),
		zap.String("timetable_id", entry.TimetableID),
		zap.String("day_of_week", entry.DayOfWeek),
		zap.String("start_time", entry.StartTime))
	return entry, nil
}

// Update merges the request into the stored entry and re-runs the conflict
// check with the entry itself excluded.
func (s *ScheduleEntryService) Update(ctx context.Context, id string, req UpdateScheduleEntryRequest) (*models.ScheduleEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entry")
	}

	timetable, err := s.loadTimetable(ctx, entry.TimetableID)
	if err != nil {
		return nil, err
	}
	if err := guardMutable(timetable); err != nil {
		return nil, err
	}

	applyEntryUpdate(entry, req)
	if err := s.validatePlacement(timetable, entry); err != nil {
		return nil, err
	}
	entry.EndTime, err = models.AddMinutes(entry.StartTime, s.slotMinutes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start time")
	}
	if err := s.resolveNames(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.checkAndWrite(ctx, entry, entry.ID, func(tx repository.Tx) error {
		return s.repo.Update(ctx, tx, entry)
	}); err != nil {
		return nil, err
	}

	s.invalidateTimetableCache(ctx, entry.TimetableID)
	return entry, nil
}

// Delete removes an entry from a mutable timetable.
func (s *ScheduleEntryService) Delete(ctx context.Context, id string) error {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entry")
	}

	timetable, err := s.loadTimetable(ctx, entry.TimetableID)
	if err != nil {
		return err
	}
	if err := guardMutable(timetable); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule entry")
	}

	s.invalidateTimetableCache(ctx, entry.TimetableID)
	return nil
}

func (s *ScheduleEntryService) loadTimetable(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return timetable, nil
}

// guardMutable enforces the lifecycle gate: published timetables reject
// entry mutations. Archived plans stay editable, they are merely invisible
// to conflict and availability scans.
func guardMutable(timetable *models.Timetable) error {
	if timetable.Status == models.TimetableStatusPublished {
		return appErrors.Clone(appErrors.ErrTimetablePublished, "published timetable cannot be modified, switch it back to draft first")
	}
	return nil
}

func (s *ScheduleEntryService) validatePlacement(timetable *models.Timetable, entry *models.ScheduleEntry) error {
	if !models.ValidWeekday(entry.DayOfWeek) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day of week %q", entry.DayOfWeek))
	}
	allowed := false
	for _, day := range models.DaysForStudyMode(timetable.StudyMode) {
		if day == entry.DayOfWeek {
			allowed = true
			break
		}
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("day %s is not available for study mode %s", entry.DayOfWeek, timetable.StudyMode))
	}
	if !models.ValidClock(entry.StartTime) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid start time %q", entry.StartTime))
	}
	for _, date := range entry.Dates {
		if !models.ValidISODate(date) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q", date))
		}
		// A date-pinned entry occupies the DayOfWeek grid cell, so every
		// pinned date has to actually fall on that weekday.
		if !models.DateMatchesWeekday(date, entry.DayOfWeek) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date %s does not fall on %s", date, entry.DayOfWeek))
		}
	}
	if entry.Format != nil && !entry.Format.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown entry format %q", *entry.Format))
	}
	return nil
}

// resolveNames denormalises dictionary display names onto the entry so reads
// never join the dictionaries.
func (s *ScheduleEntryService) resolveNames(ctx context.Context, entry *models.ScheduleEntry) error {
	subject, err := s.subjects.FindByID(ctx, entry.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	entry.SubjectName = subject.Name

	lecturer, err := s.lecturers.FindByID(ctx, entry.LecturerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "lecturer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}
	entry.LecturerName = lecturer.DisplayName()

	room, err := s.rooms.FindByID(ctx, entry.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	entry.RoomName = room.Name

	names, err := s.groups.NamesByIDs(ctx, entry.GroupIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student groups")
	}
	entry.GroupNames = entry.GroupNames[:0]
	for _, groupID := range entry.GroupIDs {
		name, ok := names[groupID]
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student group %s not found", groupID))
		}
		entry.GroupNames = append(entry.GroupNames, name)
	}
	return nil
}

// checkAndWrite runs the conflict scan and the write on one serializable
// transaction.
func (s *ScheduleEntryService) checkAndWrite(ctx context.Context, entry *models.ScheduleEntry, ignoreID string, write func(tx repository.Tx) error) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin placement transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.conflicts.Check(ctx, tx, entry, ignoreID); err != nil {
		return err
	}
	if err := write(tx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store schedule entry")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit placement")
	}
	return nil
}

func (s *ScheduleEntryService) invalidateTimetableCache(ctx context.Context, timetableID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("timetable:%s:*", timetableID)); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.String("timetable_id", timetableID), zap.Error(err))
	}
}

func applyEntryUpdate(entry *models.ScheduleEntry, req UpdateScheduleEntryRequest) {
	if req.DayOfWeek != nil {
		entry.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		entry.StartTime = *req.StartTime
	}
	if req.SubjectID != nil {
		entry.SubjectID = *req.SubjectID
	}
	if req.SubjectRef != nil {
		entry.SubjectRef = *req.SubjectRef
	}
	if req.LecturerID != nil {
		entry.LecturerID = *req.LecturerID
	}
	if req.SessionType != nil {
		entry.SessionType = *req.SessionType
	}
	if req.RoomID != nil {
		entry.RoomID = *req.RoomID
	}
	if req.GroupIDs != nil {
		entry.GroupIDs = pq.StringArray(req.GroupIDs)
	}
	if req.SpecializationIDs != nil {
		entry.SpecializationIDs = pq.StringArray(req.SpecializationIDs)
	}
	if req.Dates != nil {
		entry.Dates = pq.StringArray(*req.Dates)
	}
	if req.Format != nil {
		entry.Format = req.Format
	}
}
