package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/uni-plan/timetable-api/internal/models"
)

// CurriculumRepository reads program curricula. Curricula are reference
// data: the scheduling core never writes them.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository creates a new curriculum repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// FindByID loads a curriculum by id.
func (r *CurriculumRepository) FindByID(ctx context.Context, id string) (*models.Curriculum, error) {
	const query = `SELECT id, name, program_code, created_at, updated_at FROM curricula WHERE id = $1`
	var curriculum models.Curriculum
	if err := r.db.GetContext(ctx, &curriculum, query, id); err != nil {
		return nil, err
	}
	return &curriculum, nil
}

// ListSemesterSubjects returns the required subject tuples of one semester
// entry within a curriculum, in curriculum order.
func (r *CurriculumRepository) ListSemesterSubjects(ctx context.Context, curriculumID, semesterID string) ([]models.CurriculumSubjectRow, error) {
	const query = `SELECT id, curriculum_id, semester_id, subject_id, lecturer_id, session_type, hours, credits, position
FROM curriculum_subjects WHERE curriculum_id = $1 AND semester_id = $2 ORDER BY position ASC`
	var rows []models.CurriculumSubjectRow
	if err := r.db.SelectContext(ctx, &rows, query, curriculumID, semesterID); err != nil {
		return nil, fmt.Errorf("list curriculum subjects: %w", err)
	}
	return rows, nil
}
