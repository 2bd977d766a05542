package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-attendance-api/internal/models"
	"github.com/noah-isme/school-attendance-api/pkg/database"
)

const assignmentDetailSelect = `SELECT a.id, a.teacher_id, a.subject_id, a.group_id, a.time_slot_id, a.created_at,
       t.full_name AS teacher_name, s.name AS subject_name, g.name AS group_name,
       ts.weekday, ts.start_time, ts.end_time
FROM assignments a
JOIN teachers t ON t.id = a.teacher_id
JOIN subjects s ON s.id = a.subject_id
JOIN class_groups g ON g.id = a.group_id
JOIN time_slots ts ON ts.id = a.time_slot_id`

// AssignmentRepository persists teaching assignments. Double-booking is
// rejected by the unique constraints of the assignments table.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts the assignment in a single statement. Conflicts surface as
// unique violations naming the offending constraint.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	const query = `INSERT INTO assignments (id, teacher_id, subject_id, group_id, time_slot_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	return database.RunInTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			assignment.ID, assignment.TeacherID, assignment.SubjectID, assignment.GroupID, assignment.TimeSlotID, assignment.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
		return nil
	})
}

// Delete removes an assignment. It returns sql.ErrNoRows when nothing matched.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete assignment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns an assignment with its display data.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	var detail models.AssignmentDetail
	if err := r.db.GetContext(ctx, &detail, assignmentDetailSelect+` WHERE a.id = $1`, id); err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &detail, nil
}

// List returns assignments ordered by their position in the week.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("a.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("a.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	query := fmt.Sprintf("%s WHERE %s ORDER BY ts.weekday ASC, ts.start_time ASC, g.name ASC", assignmentDetailSelect, strings.Join(conditions, " AND "))
	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return details, nil
}

// SlotUsage projects the assignments of a group and of a teacher onto their
// slot ids, reading both from the same snapshot.
func (r *AssignmentRepository) SlotUsage(ctx context.Context, groupID, teacherID string) (*models.SlotUsage, error) {
	usage := &models.SlotUsage{}
	err := database.ReadOnly(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &usage.GroupSlots, `SELECT time_slot_id FROM assignments WHERE group_id = $1`, groupID); err != nil {
			return fmt.Errorf("group slot usage: %w", err)
		}
		if err := tx.SelectContext(ctx, &usage.TeacherSlots, `SELECT time_slot_id FROM assignments WHERE teacher_id = $1`, teacherID); err != nil {
			return fmt.Errorf("teacher slot usage: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}
