package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/uni-plan/timetable-api/internal/models"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
)

type timetableRepository interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	Create(ctx context.Context, timetable *models.Timetable) error
	Update(ctx context.Context, timetable *models.Timetable) error
	UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error
	Copy(ctx context.Context, sourceID, name string) (*models.Timetable, error)
	DeleteCascade(ctx context.Context, id string) error
}

type curriculumReader interface {
	FindByID(ctx context.Context, id string) (*models.Curriculum, error)
}

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

// CreateTimetableRequest captures timetable creation payload.
type CreateTimetableRequest struct {
	Name         string           `json:"name" validate:"required"`
	CurriculumID string           `json:"curriculum_id" validate:"required"`
	SemesterID   string           `json:"semester_id" validate:"required"`
	GroupIDs     []string         `json:"group_ids" validate:"min=1"`
	StudyMode    models.StudyMode `json:"study_mode" validate:"required"`
	Cadence      *models.Cadence  `json:"cadence"`
}

// UpdateTimetableRequest modifies timetable root fields. Nil fields keep
// their stored value.
type UpdateTimetableRequest struct {
	Name     *string         `json:"name"`
	GroupIDs []string        `json:"group_ids"`
	Cadence  *models.Cadence `json:"cadence"`
}

// CopyTimetableRequest names the draft clone of an existing timetable.
type CopyTimetableRequest struct {
	Name string `json:"name" validate:"required"`
}

// Lifecycle transitions staff may request. Draft and published toggle
// freely; archived is reached from either and leaves back to draft only.
var allowedStatusTransitions = map[models.TimetableStatus][]models.TimetableStatus{
	models.TimetableStatusDraft:     {models.TimetableStatusPublished, models.TimetableStatusArchived},
	models.TimetableStatusPublished: {models.TimetableStatusDraft, models.TimetableStatusArchived},
	models.TimetableStatusArchived:  {models.TimetableStatusDraft},
}

// TimetableService coordinates timetable lifecycle and container operations.
type TimetableService struct {
	repo      timetableRepository
	curricula curriculumReader
	semesters semesterReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs TimetableService.
func NewTimetableService(repo timetableRepository, curricula curriculumReader, semesters semesterReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{repo: repo, curricula: curricula, semesters: semesters, cache: cache, validator: validate, logger: logger}
}

// List returns timetables with pagination metadata.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.StudyMode != "" && !filter.StudyMode.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown study mode %q", filter.StudyMode))
	}
	timetables, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return timetables, pagination, nil
}

// Get returns one timetable.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return timetable, nil
}

// Create adds a new draft timetable bound to one curriculum and one semester.
func (s *TimetableService) Create(ctx context.Context, req CreateTimetableRequest) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	if !req.StudyMode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown study mode %q", req.StudyMode))
	}
	if req.Cadence != nil && !req.Cadence.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown cadence %q", *req.Cadence))
	}

	if _, err := s.curricula.FindByID(ctx, req.CurriculumID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "curriculum not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	if _, err := s.semesters.FindByID(ctx, req.SemesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	timetable := &models.Timetable{
		Name:         req.Name,
		Status:       models.TimetableStatusDraft,
		CurriculumID: req.CurriculumID,
		SemesterID:   req.SemesterID,
		GroupIDs:     pq.StringArray(req.GroupIDs),
		StudyMode:    req.StudyMode,
		Cadence:      req.Cadence,
	}
	if err := s.repo.Create(ctx, timetable); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
	}
	s.logger.Info("timetable created", zap.String("timetable_id", timetable.ID), zap.String("name", timetable.Name))
	return timetable, nil
}

// Update merges root-field edits onto an existing timetable. The curriculum
// and semester bindings are fixed at creation.
func (s *TimetableService) Update(ctx context.Context, id string, req UpdateTimetableRequest) (*models.Timetable, error) {
	timetable, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Cadence != nil && !req.Cadence.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown cadence %q", *req.Cadence))
	}

	if req.Name != nil {
		timetable.Name = *req.Name
	}
	if req.GroupIDs != nil {
		timetable.GroupIDs = pq.StringArray(req.GroupIDs)
	}
	if req.Cadence != nil {
		timetable.Cadence = req.Cadence
	}

	if err := s.repo.Update(ctx, timetable); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable")
	}
	s.invalidate(ctx, id)
	return timetable, nil
}

// UpdateStatus applies an explicit lifecycle transition.
func (s *TimetableService) UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) (*models.Timetable, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
	}
	timetable, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if timetable.Status == status {
		return timetable, nil
	}
	allowed := false
	for _, next := range allowedStatusTransitions[timetable.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot transition timetable from %s to %s", timetable.Status, status))
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable status")
	}
	timetable.Status = status
	s.invalidate(ctx, id)
	s.logger.Info("timetable status changed", zap.String("timetable_id", id), zap.String("status", string(status)))
	return timetable, nil
}

// Copy clones a timetable and its entries into a new draft. Cloned entries
// skip the conflict check on purpose: the source already held those slots,
// and a draft clone of a published plan would otherwise always collide with
// its own source.
func (s *TimetableService) Copy(ctx context.Context, sourceID string, req CopyTimetableRequest) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid copy payload")
	}
	clone, err := s.repo.Copy(ctx, sourceID, req.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to copy timetable")
	}
	s.logger.Info("timetable copied", zap.String("source_id", sourceID), zap.String("clone_id", clone.ID))
	return clone, nil
}

// Delete removes a timetable together with all its entries.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	s.invalidate(ctx, id)
	s.logger.Info("timetable deleted", zap.String("timetable_id", id))
	return nil
}

func (s *TimetableService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("timetable:%s:*", id)); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.String("timetable_id", id), zap.Error(err))
	}
}
