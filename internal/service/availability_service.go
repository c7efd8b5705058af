package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uni-plan/timetable-api/internal/models"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
)

type availabilityRepository interface {
	ListByLecturer(ctx context.Context, lecturerID string) ([]models.LecturerAvailability, error)
	Replace(ctx context.Context, lecturerID string, slots []models.LecturerAvailability) error
}

type lecturerEntryLister interface {
	ListByLecturer(ctx context.Context, lecturerID string) ([]models.ScheduleEntry, error)
}

// AvailabilitySlotPayload is one weekly slot in a replace request.
type AvailabilitySlotPayload struct {
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// ReplaceAvailabilityRequest swaps a lecturer's full availability set.
type ReplaceAvailabilityRequest struct {
	Slots []AvailabilitySlotPayload `json:"slots" validate:"dive"`
}

// AvailabilityService manages advisory lecturer availability and the overlay
// that combines it with already occupied sessions.
type AvailabilityService struct {
	repo      availabilityRepository
	entries   lecturerEntryLister
	lecturers lecturerReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, entries lecturerEntryLister, lecturers lecturerReader, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, entries: entries, lecturers: lecturers, validator: validate, logger: logger}
}

// Overlay returns a lecturer's declared availability together with the
// sessions already occupying their calendar. Entries owned by archived
// timetables are excluded so retired plans do not mask free slots.
func (s *AvailabilityService) Overlay(ctx context.Context, lecturerID string) (*models.AvailabilityOverlay, error) {
	if err := s.ensureLecturer(ctx, lecturerID); err != nil {
		return nil, err
	}

	slots, err := s.repo.ListByLecturer(ctx, lecturerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	occupied, err := s.entries.ListByLecturer(ctx, lecturerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list occupied sessions")
	}

	return &models.AvailabilityOverlay{LecturerID: lecturerID, Slots: slots, Occupied: occupied}, nil
}

// Replace swaps a lecturer's full availability set.
func (s *AvailabilityService) Replace(ctx context.Context, lecturerID string, req ReplaceAvailabilityRequest) ([]models.LecturerAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if err := s.ensureLecturer(ctx, lecturerID); err != nil {
		return nil, err
	}

	slots := make([]models.LecturerAvailability, 0, len(req.Slots))
	for _, payload := range req.Slots {
		if !models.ValidWeekday(payload.DayOfWeek) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day of week %q", payload.DayOfWeek))
		}
		if !models.ValidClock(payload.StartTime) || !models.ValidClock(payload.EndTime) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "availability times must be HH:MM")
		}
		slots = append(slots, models.LecturerAvailability{
			LecturerID: lecturerID,
			DayOfWeek:  payload.DayOfWeek,
			StartTime:  payload.StartTime,
			EndTime:    payload.EndTime,
		})
	}

	if err := s.repo.Replace(ctx, lecturerID, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace availability")
	}
	return s.repo.ListByLecturer(ctx, lecturerID)
}

func (s *AvailabilityService) ensureLecturer(ctx context.Context, lecturerID string) error {
	if _, err := s.lecturers.FindByID(ctx, lecturerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}
	return nil
}
