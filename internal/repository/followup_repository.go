package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-attendance-api/internal/models"
)

// FollowUpRepository persists prefect follow-ups of flagged students.
type FollowUpRepository struct {
	db *sqlx.DB
}

// NewFollowUpRepository constructs the repository.
func NewFollowUpRepository(db *sqlx.DB) *FollowUpRepository {
	return &FollowUpRepository{db: db}
}

// Create inserts a follow-up and fills its id and creation time.
func (r *FollowUpRepository) Create(ctx context.Context, followUp *models.FollowUp) error {
	if followUp.ID == "" {
		followUp.ID = uuid.NewString()
	}
	const query = `INSERT INTO student_followups (id, student_id, recorded_by, notes)
VALUES ($1, $2, $3, $4)
RETURNING created_at`
	if err := r.db.GetContext(ctx, &followUp.CreatedAt, query,
		followUp.ID, followUp.StudentID, followUp.RecordedBy, followUp.Notes,
	); err != nil {
		return fmt.Errorf("insert follow-up: %w", err)
	}
	return nil
}

// Latest returns the newest follow-up of a student or sql.ErrNoRows.
func (r *FollowUpRepository) Latest(ctx context.Context, studentID string) (*models.FollowUp, error) {
	const query = `SELECT id, student_id, recorded_by, notes, created_at
FROM student_followups
WHERE student_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1`
	var followUp models.FollowUp
	if err := r.db.GetContext(ctx, &followUp, query, studentID); err != nil {
		return nil, fmt.Errorf("latest follow-up: %w", err)
	}
	return &followUp, nil
}

// ListSince aggregates follow-ups recorded at or after since, one row per
// student, most recently attended first.
func (r *FollowUpRepository) ListSince(ctx context.Context, since time.Time) ([]models.FollowedStudent, error) {
	const query = `SELECT f.student_id, st.full_name AS student_name, g.name AS group_name,
       COUNT(*) AS follow_ups,
       MAX(f.created_at) AS last_follow_up_at,
       (array_agg(f.recorded_by ORDER BY f.created_at DESC))[1] AS last_recorded_by
FROM student_followups f
JOIN students st ON st.id = f.student_id
LEFT JOIN class_groups g ON g.id = st.group_id
WHERE f.created_at >= $1
GROUP BY f.student_id, st.full_name, g.name
ORDER BY last_follow_up_at DESC, f.student_id ASC`
	var rows []models.FollowedStudent
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	return rows, nil
}

// DeleteByStudent removes every follow-up of a student and reports how many
// were removed.
func (r *FollowUpRepository) DeleteByStudent(ctx context.Context, studentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM student_followups WHERE student_id = $1`, studentID)
	if err != nil {
		return 0, fmt.Errorf("delete follow-ups: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete follow-ups rows affected: %w", err)
	}
	return affected, nil
}
