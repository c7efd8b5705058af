package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/uni-plan/timetable-api/internal/models"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
)

type conflictEntryRepository interface {
	FindBySlot(ctx context.Context, exec sqlx.ExtContext, dayOfWeek, startTime string) ([]models.ScheduleEntry, error)
}

type conflictTimetableRepository interface {
	StatusesByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.TimetableStatusRef, error)
}

// ConflictService decides whether a proposed placement is legal against the
// existing entries of every non-archived timetable. Pure validation: it
// never writes, and the first conflict found wins.
type ConflictService struct {
	entries    conflictEntryRepository
	timetables conflictTimetableRepository
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewConflictService instantiates ConflictService.
func NewConflictService(entries conflictEntryRepository, timetables conflictTimetableRepository, metrics *MetricsService, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{entries: entries, timetables: timetables, metrics: metrics, logger: logger}
}

// Check validates the candidate entry against every entry occupying the same
// weekday and start time, across all timetables. ignoreID excludes the entry
// being updated from the comparison. When exec is non-nil both reads run on
// that transaction, so the caller can commit the subsequent write on the
// same snapshot.
//
// The scan is two-phase: one slot query for candidates, then one batched
// status lookup to discard entries owned by archived timetables.
func (s *ConflictService) Check(ctx context.Context, exec sqlx.ExtContext, candidate *models.ScheduleEntry, ignoreID string) error {
	existing, err := s.entries.FindBySlot(ctx, exec, candidate.DayOfWeek, candidate.StartTime)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan placement slot")
	}

	statuses, err := s.resolveStatuses(ctx, exec, existing)
	if err != nil {
		return err
	}

	for i := range existing {
		item := &existing[i]
		if item.ID == ignoreID {
			continue
		}
		status, known := statuses[item.TimetableID]
		if !known {
			s.logger.Warn("entry references unknown timetable, skipping in conflict scan",
				zap.String("entry_id", item.ID), zap.String("timetable_id", item.TimetableID))
			continue
		}
		if status == models.TimetableStatusArchived {
			continue
		}

		dimension, resource := matchResource(candidate, item)
		if dimension == "" {
			continue
		}
		// A shared resource is only a collision when the date scopes meet;
		// date-disjoint candidates must not end the scan.
		if err := s.conflictError(candidate, item, dimension, resource); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConflictService) resolveStatuses(ctx context.Context, exec sqlx.ExtContext, entries []models.ScheduleEntry) (map[string]models.TimetableStatus, error) {
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for i := range entries {
		id := entries[i].TimetableID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	refs, err := s.timetables.StatusesByIDs(ctx, exec, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve timetable statuses")
	}
	statuses := make(map[string]models.TimetableStatus, len(refs))
	for _, ref := range refs {
		statuses[ref.ID] = ref.Status
	}
	return statuses, nil
}

// matchResource returns the first shared resource dimension between the
// candidate and an existing entry, with the display name of the resource.
func matchResource(candidate, item *models.ScheduleEntry) (dimension, resource string) {
	if item.LecturerID == candidate.LecturerID {
		return models.ConflictDimensionLecturer, item.LecturerName
	}
	if item.RoomID == candidate.RoomID {
		return models.ConflictDimensionRoom, item.RoomName
	}
	if item.GroupsIntersect(candidate) {
		name := ""
		for i, id := range item.GroupIDs {
			for _, other := range candidate.GroupIDs {
				if id == other {
					if i < len(item.GroupNames) {
						name = item.GroupNames[i]
					}
					break
				}
			}
			if name != "" {
				break
			}
		}
		return models.ConflictDimensionGroup, name
	}
	return "", ""
}

// conflictError applies the date-scope tie-break: a weekly entry collides
// unconditionally, two date-pinned entries collide only when their date sets
// intersect.
func (s *ConflictService) conflictError(candidate, item *models.ScheduleEntry, dimension, resource string) error {
	weekly := candidate.Weekly() || item.Weekly()
	if !weekly && !candidate.SharesDate(item) {
		// Same weekly slot, disjoint calendar dates: never meet.
		return nil
	}

	kind := models.ConflictKindSpecificDate
	base := appErrors.ErrSpecificDateCollision
	if weekly {
		kind = models.ConflictKindRecurring
		base = appErrors.ErrRecurringCollision
	}

	var message string
	switch dimension {
	case models.ConflictDimensionLecturer:
		message = fmt.Sprintf("lecturer %s is already scheduled at this time", resource)
	case models.ConflictDimensionRoom:
		message = fmt.Sprintf("room %s is already occupied at this time", resource)
	default:
		message = fmt.Sprintf("group %s already has a class at this time", resource)
	}

	s.metrics.RecordConflict(string(kind), dimension)

	domainErr := &models.EntryConflictError{
		Kind:    kind,
		Message: message,
		Conflict: models.EntryConflict{
			EntryID:      item.ID,
			TimetableID:  item.TimetableID,
			DayOfWeek:    item.DayOfWeek,
			StartTime:    item.StartTime,
			Dimension:    dimension,
			ResourceName: resource,
		},
	}
	return appErrors.Wrap(domainErr, base.Code, base.Status, message)
}
