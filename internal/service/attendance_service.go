package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-attendance-api/internal/dto"
	"github.com/noah-isme/school-attendance-api/internal/models"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, int, error)
	Stream(ctx context.Context, filter models.AttendanceFilter, fn func(models.AttendanceEntry) error) error
	Roster(ctx context.Context, assignmentID string, date models.Date) (*models.ClassRoster, error)
}

// AttendanceOptions bounds ledger reads and batch writes.
type AttendanceOptions struct {
	PageSize    int
	MaxPageSize int
	MaxBatch    int
}

// AttendanceService writes and reads the attendance ledger. Each
// (student, assignment, date) key holds exactly one mark; writing it again
// overwrites status, time and notes.
type AttendanceService struct {
	repo      attendanceRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	opts      AttendanceOptions
	loc       *time.Location
	now       func() time.Time
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(
	repo attendanceRepository,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	opts AttendanceOptions,
	loc *time.Location,
) *AttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.MaxPageSize < opts.PageSize {
		opts.MaxPageSize = opts.PageSize
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 100
	}
	return &AttendanceService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		opts:      opts,
		loc:       loc,
		now:       time.Now,
	}
}

// Record writes one mark and reports whether a new ledger row was created.
func (s *AttendanceService) Record(ctx context.Context, req models.RecordAttendanceRequest) (*models.AttendanceRecord, bool, error) {
	record, created, err := s.write(ctx, req)
	if err != nil {
		return nil, false, err
	}
	s.cache.Invalidate(ctx, analyticsCachePattern)
	return record, created, nil
}

// RecordBatch writes every entry independently and in order, so a key
// repeated inside one payload ends with its last mark. Once storage becomes
// unavailable the remaining entries are reported failed without being tried.
func (s *AttendanceService) RecordBatch(ctx context.Context, req dto.BatchAttendanceRequest) (*dto.BatchAttendanceResult, error) {
	if len(req.Entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "entries must not be empty")
	}
	if len(req.Entries) > s.opts.MaxBatch {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("at most %d entries per batch", s.opts.MaxBatch))
	}

	result := &dto.BatchAttendanceResult{Results: make([]dto.BatchEntryResult, 0, len(req.Entries))}
	var unavailable *appErrors.Error
	for i, entry := range req.Entries {
		if entry.AssignmentID == "" {
			entry.AssignmentID = req.AssignmentID
		}
		if entry.Date == "" {
			entry.Date = req.Date
		}

		item := dto.BatchEntryResult{Index: i}
		if unavailable != nil {
			item.Error = entryError(unavailable)
		} else {
			record, created, err := s.write(ctx, entry)
			if err != nil {
				appErr := appErrors.FromError(err)
				item.Error = entryError(appErr)
				if errors.Is(appErr, appErrors.ErrStorageUnavailable) {
					unavailable = appErr
				}
			} else {
				item.Record = record
				item.Created = created
			}
		}

		result.Processed++
		if item.Error != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
		result.Results = append(result.Results, item)
	}

	if result.Succeeded > 0 {
		s.cache.Invalidate(ctx, analyticsCachePattern)
	}
	s.logger.Info("attendance batch processed",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

func entryError(err *appErrors.Error) *dto.EntryError {
	return &dto.EntryError{Code: err.Code, Message: err.Message, Retryable: err.Retryable}
}

func (s *AttendanceService) write(ctx context.Context, req models.RecordAttendanceRequest) (*models.AttendanceRecord, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordAttendanceMark(req.Status, appErrors.ErrInvalidInput.Code)
		return nil, false, invalidInput(err, "invalid attendance payload")
	}

	record, err := s.toRecord(req)
	if err != nil {
		s.metrics.RecordAttendanceMark(req.Status, appErrors.ErrInvalidInput.Code)
		return nil, false, err
	}

	start := time.Now()
	stored, created, err := s.repo.Upsert(ctx, record)
	s.metrics.ObserveDBQuery("attendance_upsert", time.Since(start))
	if err != nil {
		classified := storageError(s.logger, err, "failed to record attendance")
		s.metrics.RecordAttendanceMark(req.Status, appErrors.FromError(classified).Code)
		return nil, false, classified
	}

	outcome := "updated"
	if created {
		outcome = "created"
	}
	s.metrics.RecordAttendanceMark(stored.Status, outcome)
	return stored, created, nil
}

func (s *AttendanceService) toRecord(req models.RecordAttendanceRequest) (*models.AttendanceRecord, error) {
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInvalidInput, "date must be YYYY-MM-DD")
	}
	recordedAt := models.ClockOf(s.now().In(s.loc))
	if req.RecordedAt != "" {
		if recordedAt, err = models.ParseTimeOfDay(req.RecordedAt); err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrInvalidInput, "recordedAt must be HH:MM or HH:MM:SS")
		}
	}
	return &models.AttendanceRecord{
		StudentID:    req.StudentID,
		AssignmentID: req.AssignmentID,
		Date:         date,
		Status:       req.Status,
		RecordedAt:   recordedAt,
		Notes:        req.Notes,
	}, nil
}

// Query returns one page of ledger entries matching every given filter.
func (s *AttendanceService) Query(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, *models.Pagination, error) {
	if err := s.validateFilter(filter); err != nil {
		return nil, nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = s.opts.PageSize
	}
	if filter.PageSize > s.opts.MaxPageSize {
		filter.PageSize = s.opts.MaxPageSize
	}

	start := time.Now()
	entries, total, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("attendance_list", time.Since(start))
	if err != nil {
		return nil, nil, storageError(s.logger, err, "failed to query attendance")
	}
	if entries == nil {
		entries = []models.AttendanceEntry{}
	}
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Stream hands every matching entry to fn without paging. An error returned
// by fn stops the stream and is returned unchanged.
func (s *AttendanceService) Stream(ctx context.Context, filter models.AttendanceFilter, fn func(models.AttendanceEntry) error) error {
	if err := s.validateFilter(filter); err != nil {
		return err
	}
	var callbackErr error
	err := s.repo.Stream(ctx, filter, func(entry models.AttendanceEntry) error {
		if err := fn(entry); err != nil {
			callbackErr = err
			return err
		}
		return nil
	})
	if err != nil {
		if callbackErr != nil && errors.Is(err, callbackErr) {
			return callbackErr
		}
		return storageError(s.logger, err, "failed to stream attendance")
	}
	return nil
}

// Roster lists the active students of an assignment's group with the mark
// each already has for that class on date. A zero date means today.
func (s *AttendanceService) Roster(ctx context.Context, assignmentID string, date models.Date) (*models.ClassRoster, error) {
	if err := s.validator.Var(assignmentID, "required,uuid"); err != nil {
		return nil, invalidInput(err, "assignmentId must be a uuid")
	}
	if date.IsZero() {
		date = models.DateOf(s.now().In(s.loc))
	}

	start := time.Now()
	roster, err := s.repo.Roster(ctx, assignmentID, date)
	s.metrics.ObserveDBQuery("attendance_roster", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, storageError(s.logger, err, "failed to load roster")
	}
	if roster.Students == nil {
		roster.Students = []models.RosterStudent{}
	}
	roster.Marked = 0
	for _, student := range roster.Students {
		if student.Status != nil {
			roster.Marked++
		}
	}
	return roster, nil
}

func (s *AttendanceService) validateFilter(filter models.AttendanceFilter) error {
	ids := map[string]string{
		"groupId":      filter.GroupID,
		"assignmentId": filter.AssignmentID,
		"studentId":    filter.StudentID,
	}
	for name, value := range ids {
		if err := s.validator.Var(value, "omitempty,uuid"); err != nil {
			return invalidInput(err, name+" must be a uuid")
		}
	}
	return nil
}
