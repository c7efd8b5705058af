package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uni-plan/timetable-api/internal/models"
)

const scheduleEntryColumns = "id, timetable_id, day_of_week, start_time, end_time, subject_id, subject_name, subject_ref, lecturer_id, lecturer_name, session_type, room_id, room_name, group_ids, group_names, specialization_ids, dates, format, created_at, updated_at"

const scheduleEntryInsertQuery = `INSERT INTO schedule_entries (id, timetable_id, day_of_week, start_time, end_time, subject_id, subject_name, subject_ref, lecturer_id, lecturer_name, session_type, room_id, room_name, group_ids, group_names, specialization_ids, dates, format, created_at, updated_at)
VALUES (:id, :timetable_id, :day_of_week, :start_time, :end_time, :subject_id, :subject_name, :subject_ref, :lecturer_id, :lecturer_name, :session_type, :room_id, :room_name, :group_ids, :group_names, :specialization_ids, :dates, :format, :created_at, :updated_at)`

// ScheduleEntryRepository provides persistence for placed class sessions.
type ScheduleEntryRepository struct {
	db *sqlx.DB
}

// NewScheduleEntryRepository creates a new schedule entry repository.
func NewScheduleEntryRepository(db *sqlx.DB) *ScheduleEntryRepository {
	return &ScheduleEntryRepository{db: db}
}

func (r *ScheduleEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BeginTx opens a transaction for placement check-then-write sequences.
// Serializable isolation keeps two concurrent placements from both passing
// the conflict scan against a stale snapshot.
func (r *ScheduleEntryRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin placement transaction: %w", err)
	}
	return tx, nil
}

// FindByID loads a schedule entry by id.
func (r *ScheduleEntryRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE id = $1", scheduleEntryColumns)
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindBySlot returns every entry occupying the given weekday and start time
// across all timetables. Candidates for the conflict scan; archived owners
// are filtered afterwards by a batched status lookup.
func (r *ScheduleEntryRepository) FindBySlot(ctx context.Context, exec sqlx.ExtContext, dayOfWeek, startTime string) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE day_of_week = $1 AND start_time = $2", scheduleEntryColumns)
	var entries []models.ScheduleEntry
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, dayOfWeek, startTime); err != nil {
		return nil, fmt.Errorf("find entries by slot: %w", err)
	}
	return entries, nil
}

// ListByTimetable returns entries of one timetable ordered by day and time.
func (r *ScheduleEntryRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE timetable_id = $1
ORDER BY array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY'], day_of_week), start_time`, scheduleEntryColumns)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, timetableID); err != nil {
		return nil, fmt.Errorf("list entries by timetable: %w", err)
	}
	return entries, nil
}

// ListByLecturer returns a lecturer's entries excluding those owned by
// archived timetables, mirroring the conflict scan's archived exclusion.
func (r *ScheduleEntryRepository) ListByLecturer(ctx context.Context, lecturerID string) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE lecturer_id = $1
  AND EXISTS (SELECT 1 FROM timetables t WHERE t.id = schedule_entries.timetable_id AND t.status <> 'archived')
ORDER BY array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY'], day_of_week), start_time`, scheduleEntryColumns)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, lecturerID); err != nil {
		return nil, fmt.Errorf("list entries by lecturer: %w", err)
	}
	return entries, nil
}

// Create stores a new schedule entry.
func (r *ScheduleEntryRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), scheduleEntryInsertQuery, entry); err != nil {
		return fmt.Errorf("create schedule entry: %w", err)
	}
	return nil
}

// Update modifies a schedule entry record.
func (r *ScheduleEntryRepository) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_entries SET timetable_id = :timetable_id, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, subject_id = :subject_id, subject_name = :subject_name, subject_ref = :subject_ref, lecturer_id = :lecturer_id, lecturer_name = :lecturer_name, session_type = :session_type, room_id = :room_id, room_name = :room_name, group_ids = :group_ids, group_names = :group_names, specialization_ids = :specialization_ids, dates = :dates, format = :format, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("update schedule entry: %w", err)
	}
	return nil
}

// Delete removes a schedule entry by id.
func (r *ScheduleEntryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule entry rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
