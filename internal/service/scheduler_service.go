package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-attendance-api/internal/models"
	"github.com/noah-isme/school-attendance-api/pkg/database"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
)

// analyticsCachePattern matches every cached analytics payload.
const analyticsCachePattern = "analytics:*"

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error)
	SlotUsage(ctx context.Context, groupID, teacherID string) (*models.SlotUsage, error)
}

type slotLister interface {
	List(ctx context.Context) ([]models.TimeSlot, error)
}

// SchedulerService places teachers, subjects and groups into weekly slots.
// Uniqueness is left to the database constraints.
type SchedulerService struct {
	assignments assignmentRepository
	slots       slotLister
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewSchedulerService constructs a SchedulerService.
func NewSchedulerService(
	assignments assignmentRepository,
	slots slotLister,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	loc *time.Location,
) *SchedulerService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SchedulerService{
		assignments: assignments,
		slots:       slots,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		loc:         loc,
		now:         time.Now,
	}
}

// AvailableSlots returns the slots that neither the group nor the teacher
// occupies yet. The answer is advisory: creation may still conflict.
func (s *SchedulerService) AvailableSlots(ctx context.Context, groupID, teacherID string) ([]models.TimeSlot, error) {
	if err := s.validator.Var(groupID, "required,uuid"); err != nil {
		return nil, invalidInput(err, "groupId must be a uuid")
	}
	if err := s.validator.Var(teacherID, "required,uuid"); err != nil {
		return nil, invalidInput(err, "teacherId must be a uuid")
	}

	all, err := s.slots.List(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	usage, err := s.assignments.SlotUsage(ctx, groupID, teacherID)
	s.metrics.ObserveDBQuery("slot_usage", time.Since(start))
	if err != nil {
		return nil, storageError(s.logger, err, "failed to read slot usage")
	}
	return freeSlots(all, usage), nil
}

func freeSlots(all []models.TimeSlot, usage *models.SlotUsage) []models.TimeSlot {
	taken := make(map[int]struct{}, len(usage.GroupSlots)+len(usage.TeacherSlots))
	for _, id := range usage.GroupSlots {
		taken[id] = struct{}{}
	}
	for _, id := range usage.TeacherSlots {
		taken[id] = struct{}{}
	}
	free := make([]models.TimeSlot, 0, len(all))
	for _, slot := range all {
		if _, ok := taken[slot.ID]; !ok {
			free = append(free, slot)
		}
	}
	return free
}

// CreateAssignment schedules a class. A taken slot for the group or the
// teacher yields SLOT_CONFLICT and an identical assignment DUPLICATE_ASSIGNMENT.
func (s *SchedulerService) CreateAssignment(ctx context.Context, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid assignment payload")
	}

	assignment := &models.Assignment{
		TeacherID:  req.TeacherID,
		SubjectID:  req.SubjectID,
		GroupID:    req.GroupID,
		TimeSlotID: req.TimeSlotID,
		CreatedAt:  s.now().In(s.loc),
	}
	start := time.Now()
	err := s.assignments.Create(ctx, assignment)
	s.metrics.ObserveDBQuery("assignment_create", time.Since(start))
	if err != nil {
		classified := storageError(s.logger, err, "failed to create assignment")
		code := appErrors.FromError(classified).Code
		s.metrics.RecordAssignment(code)
		if errors.Is(classified, appErrors.ErrSlotConflict) || errors.Is(classified, appErrors.ErrDuplicateAssignment) {
			s.logger.Info("assignment rejected",
				zap.String("code", code),
				zap.String("teacher_id", req.TeacherID),
				zap.String("group_id", req.GroupID),
				zap.Int("time_slot_id", req.TimeSlotID))
		}
		return nil, classified
	}

	s.metrics.RecordAssignment("created")
	s.cache.Invalidate(ctx, analyticsCachePattern)
	s.logger.Info("assignment created", zap.String("assignment_id", assignment.ID), zap.Int("time_slot_id", assignment.TimeSlotID))
	return assignment, nil
}

// DeleteAssignment removes an assignment. Attendance history is never
// cascaded: an assignment with records yields CONFLICT.
func (s *SchedulerService) DeleteAssignment(ctx context.Context, id string) error {
	if err := s.validator.Var(id, "required,uuid"); err != nil {
		return invalidInput(err, "assignment id must be a uuid")
	}
	if err := s.assignments.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		case database.IsForeignKeyViolation(err):
			return appErrors.WrapAs(err, appErrors.ErrConflict, "assignment has attendance history")
		}
		return storageError(s.logger, err, "failed to delete assignment")
	}
	s.cache.Invalidate(ctx, analyticsCachePattern)
	s.logger.Info("assignment deleted", zap.String("assignment_id", id))
	return nil
}

// GetAssignment returns one assignment with its slot and display names.
func (s *SchedulerService) GetAssignment(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	if err := s.validator.Var(id, "required,uuid"); err != nil {
		return nil, invalidInput(err, "assignment id must be a uuid")
	}
	detail, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, storageError(s.logger, err, "failed to load assignment")
	}
	return detail, nil
}

// ListAssignments returns assignments filtered by teacher and/or group.
func (s *SchedulerService) ListAssignments(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	if err := s.validator.Var(filter.TeacherID, "omitempty,uuid"); err != nil {
		return nil, invalidInput(err, "teacherId must be a uuid")
	}
	if err := s.validator.Var(filter.GroupID, "omitempty,uuid"); err != nil {
		return nil, invalidInput(err, "groupId must be a uuid")
	}
	details, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, storageError(s.logger, err, "failed to list assignments")
	}
	return details, nil
}
