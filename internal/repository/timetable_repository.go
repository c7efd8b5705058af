package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uni-plan/timetable-api/internal/models"
)

const timetableColumns = "id, name, status, curriculum_id, semester_id, group_ids, study_mode, cadence, created_at, updated_at"

// TimetableRepository provides persistence for timetables, including the
// bulk copy and cascade-delete operations that must be atomic.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns timetables with optional filtering and pagination.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	base := "FROM timetables WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.StudyMode != "" {
		conditions = append(conditions, fmt.Sprintf("study_mode = $%d", len(args)+1))
		args = append(args, filter.StudyMode)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"status":     true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", timetableColumns, base, sortBy, order, size, offset)
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}

	return timetables, total, nil
}

// FindByID loads a timetable by id.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE id = $1", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// StatusesByIDs resolves lifecycle statuses for a set of timetables in one
// round-trip; used by the conflict scan to discard archived owners.
func (r *TimetableRepository) StatusesByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.TimetableStatusRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, status FROM timetables WHERE id = ANY($1)`
	var refs []models.TimetableStatusRef
	if err := sqlx.SelectContext(ctx, r.exec(exec), &refs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("resolve timetable statuses: %w", err)
	}
	return refs, nil
}

// Create stores a new timetable record.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.Timetable) error {
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	const query = `INSERT INTO timetables (id, name, status, curriculum_id, semester_id, group_ids, study_mode, cadence, created_at, updated_at)
VALUES (:id, :name, :status, :curriculum_id, :semester_id, :group_ids, :study_mode, :cadence, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, timetable); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// Update modifies a timetable's root fields.
func (r *TimetableRepository) Update(ctx context.Context, timetable *models.Timetable) error {
	timetable.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetables SET name = :name, status = :status, curriculum_id = :curriculum_id, semester_id = :semester_id, group_ids = :group_ids, study_mode = :study_mode, cadence = :cadence, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, timetable)
	if err != nil {
		return fmt.Errorf("update timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus sets the lifecycle status of a timetable.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error {
	const query = `UPDATE timetables SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Copy clones a timetable and every entry referencing it under a new id in
// one transaction. The clone is created as a draft. Returns the new record.
func (r *TimetableRepository) Copy(ctx context.Context, sourceID, name string) (*models.Timetable, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin copy timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var source models.Timetable
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE id = $1", timetableColumns)
	if err = tx.GetContext(ctx, &source, query, sourceID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	clone := source
	clone.ID = uuid.NewString()
	clone.Name = name
	clone.Status = models.TimetableStatusDraft
	clone.CreatedAt = now
	clone.UpdatedAt = now

	const insertQuery = `INSERT INTO timetables (id, name, status, curriculum_id, semester_id, group_ids, study_mode, cadence, created_at, updated_at)
VALUES (:id, :name, :status, :curriculum_id, :semester_id, :group_ids, :study_mode, :cadence, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insertQuery, &clone); err != nil {
		return nil, fmt.Errorf("insert timetable clone: %w", err)
	}

	var entries []models.ScheduleEntry
	entriesQuery := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE timetable_id = $1", scheduleEntryColumns)
	if err = tx.SelectContext(ctx, &entries, entriesQuery, sourceID); err != nil {
		return nil, fmt.Errorf("load source entries: %w", err)
	}

	for i := range entries {
		entry := entries[i]
		entry.ID = uuid.NewString()
		entry.TimetableID = clone.ID
		entry.CreatedAt = now
		entry.UpdatedAt = now
		if _, err = sqlx.NamedExecContext(ctx, tx, scheduleEntryInsertQuery, &entry); err != nil {
			return nil, fmt.Errorf("clone schedule entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit copy timetable: %w", err)
	}
	return &clone, nil
}

// DeleteCascade removes a timetable and every entry referencing it in one
// transaction.
func (r *TimetableRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM schedule_entries WHERE timetable_id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable entries: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM timetables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable rows affected: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete timetable: %w", err)
	}
	return nil
}
