package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uni-plan/timetable-api/internal/models"
)

// SemesterRepository persists semesters and their session dates.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository creates a new semester repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// FindByID loads a semester by id.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	const query = `SELECT id, name, academic_year, start_date, end_date, created_at, updated_at FROM semesters WHERE id = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// ListDates returns a semester's session dates in chronological order.
func (r *SemesterRepository) ListDates(ctx context.Context, semesterID string) ([]models.SemesterDate, error) {
	const query = `SELECT id, semester_id, date, format, created_at FROM semester_dates WHERE semester_id = $1 ORDER BY date ASC`
	var dates []models.SemesterDate
	if err := r.db.SelectContext(ctx, &dates, query, semesterID); err != nil {
		return nil, fmt.Errorf("list semester dates: %w", err)
	}
	return dates, nil
}

// ReplaceDates swaps the full session-date set of a semester in one
// transaction.
func (r *SemesterRepository) ReplaceDates(ctx context.Context, semesterID string, dates []models.SemesterDate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace semester dates: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM semester_dates WHERE semester_id = $1`, semesterID); err != nil {
		return fmt.Errorf("clear semester dates: %w", err)
	}

	now := time.Now().UTC()
	for i := range dates {
		date := dates[i]
		if date.ID == "" {
			date.ID = uuid.NewString()
		}
		date.SemesterID = semesterID
		if date.CreatedAt.IsZero() {
			date.CreatedAt = now
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, `INSERT INTO semester_dates (id, semester_id, date, format, created_at)
VALUES (:id, :semester_id, :date, :format, :created_at)`, &date); err != nil {
			return fmt.Errorf("insert semester date: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace semester dates: %w", err)
	}
	return nil
}
