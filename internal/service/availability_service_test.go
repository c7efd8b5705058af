package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uni-plan/timetable-api/internal/models"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
)

type availabilityRepoStub struct {
	slots map[string][]models.LecturerAvailability
}

func newAvailabilityRepoStub() *availabilityRepoStub {
	return &availabilityRepoStub{slots: map[string][]models.LecturerAvailability{}}
}

func (s *availabilityRepoStub) ListByLecturer(ctx context.Context, lecturerID string) ([]models.LecturerAvailability, error) {
	return s.slots[lecturerID], nil
}

func (s *availabilityRepoStub) Replace(ctx context.Context, lecturerID string, slots []models.LecturerAvailability) error {
	s.slots[lecturerID] = slots
	return nil
}

func newAvailabilityFixture(repo *availabilityRepoStub, entries *entryRepoStub) *AvailabilityService {
	lecturers := &lecturerDictStub{lecturers: map[string]models.Lecturer{
		"lect-1": {ID: "lect-1", Title: "dr", FullName: "Jan Kowalski"},
	}}
	return NewAvailabilityService(repo, entries, lecturers, nil, nil)
}

func TestAvailabilityOverlayCombinesSlotsAndSessions(t *testing.T) {
	repo := newAvailabilityRepoStub()
	repo.slots["lect-1"] = []models.LecturerAvailability{
		{LecturerID: "lect-1", DayOfWeek: "MONDAY", StartTime: "08:00", EndTime: "13:00"},
	}
	entries := newEntryRepoStub()
	entries.entries["e1"] = models.ScheduleEntry{ID: "e1", LecturerID: "lect-1", DayOfWeek: "MONDAY", StartTime: "08:00"}
	entries.entries["e2"] = models.ScheduleEntry{ID: "e2", LecturerID: "lect-other", DayOfWeek: "MONDAY", StartTime: "08:00"}
	svc := newAvailabilityFixture(repo, entries)

	overlay, err := svc.Overlay(context.Background(), "lect-1")
	require.NoError(t, err)
	assert.Len(t, overlay.Slots, 1)
	require.Len(t, overlay.Occupied, 1)
	assert.Equal(t, "e1", overlay.Occupied[0].ID)
}

func TestAvailabilityOverlayUnknownLecturer(t *testing.T) {
	svc := newAvailabilityFixture(newAvailabilityRepoStub(), newEntryRepoStub())

	_, err := svc.Overlay(context.Background(), "lect-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityReplaceStoresSlots(t *testing.T) {
	repo := newAvailabilityRepoStub()
	svc := newAvailabilityFixture(repo, newEntryRepoStub())

	slots, err := svc.Replace(context.Background(), "lect-1", ReplaceAvailabilityRequest{
		Slots: []AvailabilitySlotPayload{
			{DayOfWeek: "MONDAY", StartTime: "08:00", EndTime: "13:00"},
			{DayOfWeek: "FRIDAY", StartTime: "15:00", EndTime: "20:00"},
		},
	})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "lect-1", slots[0].LecturerID)
}

func TestAvailabilityReplaceRejectsBadDay(t *testing.T) {
	svc := newAvailabilityFixture(newAvailabilityRepoStub(), newEntryRepoStub())

	_, err := svc.Replace(context.Background(), "lect-1", ReplaceAvailabilityRequest{
		Slots: []AvailabilitySlotPayload{{DayOfWeek: "FUNDAY", StartTime: "08:00", EndTime: "13:00"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityReplaceRejectsBadClock(t *testing.T) {
	svc := newAvailabilityFixture(newAvailabilityRepoStub(), newEntryRepoStub())

	_, err := svc.Replace(context.Background(), "lect-1", ReplaceAvailabilityRequest{
		Slots: []AvailabilitySlotPayload{{DayOfWeek: "MONDAY", StartTime: "8am", EndTime: "13:00"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
