package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uni-plan/timetable-api/internal/models"
	"github.com/uni-plan/timetable-api/pkg/config"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
)

type semesterRepository interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	ListDates(ctx context.Context, semesterID string) ([]models.SemesterDate, error)
	ReplaceDates(ctx context.Context, semesterID string, dates []models.SemesterDate) error
}

// SemesterDatePayload is one session date in a replace request.
type SemesterDatePayload struct {
	Date   string             `json:"date" validate:"required"`
	Format models.EntryFormat `json:"format" validate:"required"`
}

// ReplaceSemesterDatesRequest swaps the full session-date set of a semester.
type ReplaceSemesterDatesRequest struct {
	Dates []SemesterDatePayload `json:"dates" validate:"dive"`
}

// CalendarGrid is the placement grid for one timetable: the weekdays its
// study mode allows and the fixed daily time slots.
type CalendarGrid struct {
	StudyMode models.StudyMode  `json:"study_mode"`
	Days      []string          `json:"days"`
	Slots     []models.TimeSlot `json:"slots"`
}

// CalendarService exposes the placement grid and the session-date calendar
// used by session-based study modes.
type CalendarService struct {
	semesters semesterRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	policy    config.SchedulingConfig
}

// NewCalendarService constructs CalendarService.
func NewCalendarService(semesters semesterRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, policy config.SchedulingConfig) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.SlotMinutes <= 0 {
		policy.SlotMinutes = models.DefaultSlotMinutes
	}
	if policy.SlotGapMinutes <= 0 {
		policy.SlotGapMinutes = models.DefaultSlotGapMinutes
	}
	if policy.SlotsPerDay <= 0 {
		policy.SlotsPerDay = models.DefaultSlotsPerDay
	}
	if policy.GridStart == "" {
		policy.GridStart = models.DefaultGridStart
	}
	if policy.SessionChunkSize <= 0 {
		policy.SessionChunkSize = models.DefaultSessionChunk
	}
	return &CalendarService{semesters: semesters, cache: cache, validator: validate, logger: logger, policy: policy}
}

// Grid returns the placement grid for a study mode.
func (s *CalendarService) Grid(ctx context.Context, mode models.StudyMode) (*CalendarGrid, error) {
	if !mode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown study mode %q", mode))
	}
	slots, err := models.BuildTimeSlots(s.policy.GridStart, s.policy.SlotsPerDay, s.policy.SlotMinutes, s.policy.SlotGapMinutes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build time slots")
	}
	return &CalendarGrid{StudyMode: mode, Days: models.DaysForStudyMode(mode), Slots: slots}, nil
}

// SessionBlocks groups a semester's dates into on-site session chunks,
// chronological, for block-mode navigation.
func (s *CalendarService) SessionBlocks(ctx context.Context, semesterID string) ([]models.SessionBlock, error) {
	cacheKey := fmt.Sprintf("semester:%s:blocks", semesterID)
	var cached []models.SessionBlock
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	if _, err := s.semesters.FindByID(ctx, semesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	dates, err := s.semesters.ListDates(ctx, semesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semester dates")
	}

	blocks := models.ChunkSessionDates(dates, s.policy.SessionChunkSize)
	if err := s.cache.Set(ctx, cacheKey, blocks, 0); err != nil {
		s.logger.Warn("failed to cache session blocks", zap.String("semester_id", semesterID), zap.Error(err))
	}
	return blocks, nil
}

// ListSemesterDates returns a semester's raw session dates.
func (s *CalendarService) ListSemesterDates(ctx context.Context, semesterID string) ([]models.SemesterDate, error) {
	if _, err := s.semesters.FindByID(ctx, semesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	dates, err := s.semesters.ListDates(ctx, semesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semester dates")
	}
	return dates, nil
}

// ReplaceSemesterDates swaps a semester's full session-date set.
func (s *CalendarService) ReplaceSemesterDates(ctx context.Context, semesterID string, req ReplaceSemesterDatesRequest) ([]models.SemesterDate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester dates payload")
	}
	if _, err := s.semesters.FindByID(ctx, semesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	dates := make([]models.SemesterDate, 0, len(req.Dates))
	for _, payload := range req.Dates {
		if !models.ValidISODate(payload.Date) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q", payload.Date))
		}
		if !payload.Format.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown date format %q", payload.Format))
		}
		dates = append(dates, models.SemesterDate{SemesterID: semesterID, Date: payload.Date, Format: payload.Format})
	}

	if err := s.semesters.ReplaceDates(ctx, semesterID, dates); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace semester dates")
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("semester:%s:*", semesterID)); err != nil {
		s.logger.Warn("failed to invalidate semester cache", zap.String("semester_id", semesterID), zap.Error(err))
	}
	return s.semesters.ListDates(ctx, semesterID)
}
