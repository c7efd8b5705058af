package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uni-plan/timetable-api/internal/models"
)

// AvailabilityRepository persists per-lecturer availability slots.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListByLecturer returns a lecturer's declared availability slots.
func (r *AvailabilityRepository) ListByLecturer(ctx context.Context, lecturerID string) ([]models.LecturerAvailability, error) {
	const query = `SELECT id, lecturer_id, day_of_week, start_time, end_time, created_at FROM lecturer_availability
WHERE lecturer_id = $1
ORDER BY array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY'], day_of_week), start_time`
	var slots []models.LecturerAvailability
	if err := r.db.SelectContext(ctx, &slots, query, lecturerID); err != nil {
		return nil, fmt.Errorf("list lecturer availability: %w", err)
	}
	return slots, nil
}

// Replace swaps the full availability set of a lecturer in one transaction.
func (r *AvailabilityRepository) Replace(ctx context.Context, lecturerID string, slots []models.LecturerAvailability) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace availability: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM lecturer_availability WHERE lecturer_id = $1`, lecturerID); err != nil {
		return fmt.Errorf("clear lecturer availability: %w", err)
	}

	now := time.Now().UTC()
	for i := range slots {
		slot := slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		slot.LecturerID = lecturerID
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, `INSERT INTO lecturer_availability (id, lecturer_id, day_of_week, start_time, end_time, created_at)
VALUES (:id, :lecturer_id, :day_of_week, :start_time, :end_time, :created_at)`, &slot); err != nil {
			return fmt.Errorf("insert availability slot: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace availability: %w", err)
	}
	return nil
}
