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

// DefaultFollowUpDays is the look-back used when listing recent follow-ups.
const DefaultFollowUpDays = 30

const maxFollowUpDays = 365

type followUpRepository interface {
	Create(ctx context.Context, followUp *models.FollowUp) error
	Latest(ctx context.Context, studentID string) (*models.FollowUp, error)
	ListSince(ctx context.Context, since time.Time) ([]models.FollowedStudent, error)
	DeleteByStudent(ctx context.Context, studentID string) (int64, error)
}

// FollowUpService keeps track of which flagged students a prefect has
// already attended to.
type FollowUpService struct {
	repo      followUpRepository
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFollowUpService constructs a FollowUpService.
func NewFollowUpService(repo followUpRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FollowUpService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowUpService{
		repo:      repo,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Record stores a follow-up of a student by the given user.
func (s *FollowUpService) Record(ctx context.Context, req models.CreateFollowUpRequest, recordedBy string) (*models.FollowUp, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid follow-up payload")
	}
	if recordedBy == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "recordedBy is required")
	}

	followUp := &models.FollowUp{StudentID: req.StudentID, RecordedBy: recordedBy, Notes: req.Notes}
	start := time.Now()
	err := s.repo.Create(ctx, followUp)
	s.metrics.ObserveDBQuery("followup_create", time.Since(start))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, appErrors.WrapAs(err, appErrors.ErrNotFound, "student not found")
		}
		return nil, storageError(s.logger, err, "failed to record follow-up")
	}
	s.logger.Info("student follow-up recorded",
		zap.String("student_id", followUp.StudentID),
		zap.String("recorded_by", recordedBy))
	return followUp, nil
}

// Status reports whether a student has any follow-up and returns the newest.
func (s *FollowUpService) Status(ctx context.Context, studentID string) (*models.FollowUpStatus, error) {
	if err := s.validator.Var(studentID, "required,uuid"); err != nil {
		return nil, invalidInput(err, "student id must be a uuid")
	}
	latest, err := s.repo.Latest(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.FollowUpStatus{StudentID: studentID}, nil
		}
		return nil, storageError(s.logger, err, "failed to load follow-up")
	}
	return &models.FollowUpStatus{StudentID: studentID, FollowedUp: true, Latest: latest}, nil
}

// Recent lists the students followed up during the last days days.
func (s *FollowUpService) Recent(ctx context.Context, days int) ([]models.FollowedStudent, error) {
	if days < 1 || days > maxFollowUpDays {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "days must be between 1 and 365")
	}
	since := s.now().AddDate(0, 0, -days)
	start := time.Now()
	rows, err := s.repo.ListSince(ctx, since)
	s.metrics.ObserveDBQuery("followup_list", time.Since(start))
	if err != nil {
		return nil, storageError(s.logger, err, "failed to list follow-ups")
	}
	if rows == nil {
		rows = []models.FollowedStudent{}
	}
	return rows, nil
}

// Delete removes every follow-up of a student.
func (s *FollowUpService) Delete(ctx context.Context, studentID string) error {
	if err := s.validator.Var(studentID, "required,uuid"); err != nil {
		return invalidInput(err, "student id must be a uuid")
	}
	removed, err := s.repo.DeleteByStudent(ctx, studentID)
	if err != nil {
		return storageError(s.logger, err, "failed to delete follow-ups")
	}
	if removed == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "student has no follow-ups")
	}
	s.logger.Info("student follow-ups deleted", zap.String("student_id", studentID), zap.Int64("removed", removed))
	return nil
}
