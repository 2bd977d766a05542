package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/school-attendance-api/internal/dto"
	"github.com/noah-isme/school-attendance-api/internal/models"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
)

// Defaults applied by the HTTP layer when a query parameter is omitted.
const (
	DefaultPeriodDays          = 30
	DefaultTrendDays           = 7
	DefaultRankingLimit        = 5
	DefaultMinimumAbsences     = 1
	DefaultComplianceThreshold = 80.0

	maxPeriodDays      = 365
	maxRankingLimit    = 50
	studentHistorySize = 50

	excellentThreshold = 90.0
	criticalThreshold  = 70.0
	alertAbsenceLimit  = 5
	alertAbsenceDays   = 7
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	StudentSnapshot(ctx context.Context, studentID string, window models.DateRange, historyLimit int) (*models.StudentSnapshot, error)
	GroupSnapshot(ctx context.Context, groupID string, window models.DateRange) (*models.GroupSnapshot, error)
	DailyCounts(ctx context.Context, window models.DateRange) ([]models.DailyCounts, error)
	GroupCounts(ctx context.Context, window models.DateRange) ([]models.GroupCounts, error)
	StudentCounts(ctx context.Context, window models.DateRange, minimumAbsences int, groupID string) ([]models.StudentCounts, error)
	TeacherActivity(ctx context.Context, teacherID string, window models.DateRange) (string, []models.AssignmentActivity, error)
	AllActivity(ctx context.Context, window models.DateRange) ([]models.AssignmentActivity, error)
	ScheduledClasses(ctx context.Context, date models.Date, weekday models.Weekday) ([]models.ScheduledClass, error)
	DailyHeadcount(ctx context.Context, date models.Date) (*models.DailyHeadcount, error)
	AlertCounts(ctx context.Context, date models.Date, weekday models.Weekday, absenceWindow models.DateRange, absenceLimit int) (*models.AlertCounts, error)
	RegistrationHistory(ctx context.Context, window models.DateRange, teacherID, groupID string) ([]models.HistoryClass, []models.ClassRegistration, error)
}

// AnalyticsService derives read-only attendance analytics from the ledger.
// Storage returns raw counts; every percentage, filter and ordering is
// computed here. Results are cached under "analytics:" keys and the boolean
// returned next to each result reports a cache hit.
type AnalyticsService struct {
	repo      AnalyticsRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, loc *time.Location) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: NewValidator(),
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// Today returns the current date in the school time zone.
func (s *AnalyticsService) Today() models.Date {
	return models.DateOf(s.now().In(s.loc))
}

// StudentStats reports a student's attendance, per-class breakdown and
// latest marks over the last periodDays days.
func (s *AnalyticsService) StudentStats(ctx context.Context, studentID string, periodDays int) (*models.StudentStats, bool, error) {
	if err := s.validator.Var(studentID, "required,uuid"); err != nil {
		return nil, false, invalidInput(err, "student id must be a uuid")
	}
	window, err := s.window(s.Today(), periodDays)
	if err != nil {
		return nil, false, err
	}

	key := makeAnalyticsCacheKey("student", studentID, window.To.String(), strconv.Itoa(periodDays))
	return cached(ctx, s.cache, key, func() (*models.StudentStats, error) {
		snapshot, err := observe(s, "analytics_student", func() (*models.StudentSnapshot, error) {
			return s.repo.StudentSnapshot(ctx, studentID, window, studentHistorySize)
		})
		if err != nil {
			return nil, s.notFoundOr(err, "student not found", "failed to load student statistics")
		}

		subjects := make([]models.SubjectStats, 0, len(snapshot.Subjects))
		for _, sc := range snapshot.Subjects {
			subjects = append(subjects, models.SubjectStats{SubjectCounts: sc, Percentage: sc.Percentage()})
		}
		sortSubjects(subjects)

		history := snapshot.History
		if history == nil {
			history = []models.AttendanceEntry{}
		}
		return &models.StudentStats{
			StudentSummary: summarizeStudent(snapshot.Student),
			Window:         window,
			Subjects:       subjects,
			History:        history,
		}, nil
	})
}

func sortSubjects(subjects []models.SubjectStats) {
	sort.SliceStable(subjects, func(i, j int) bool {
		if subjects[i].Percentage != subjects[j].Percentage {
			return subjects[i].Percentage < subjects[j].Percentage
		}
		return subjects[i].SubjectName < subjects[j].SubjectName
	})
}

// GroupStats reports a group's attendance and that of each active student.
func (s *AnalyticsService) GroupStats(ctx context.Context, groupID string, periodDays int) (*models.GroupStats, bool, error) {
	if err := s.validator.Var(groupID, "required,uuid"); err != nil {
		return nil, false, invalidInput(err, "group id must be a uuid")
	}
	window, err := s.window(s.Today(), periodDays)
	if err != nil {
		return nil, false, err
	}

	key := makeAnalyticsCacheKey("group", groupID, window.To.String(), strconv.Itoa(periodDays))
	return cached(ctx, s.cache, key, func() (*models.GroupStats, error) {
		snapshot, err := observe(s, "analytics_group", func() (*models.GroupSnapshot, error) {
			return s.repo.GroupSnapshot(ctx, groupID, window)
		})
		if err != nil {
			return nil, s.notFoundOr(err, "group not found", "failed to load group statistics")
		}
		students := make([]models.StudentSummary, 0, len(snapshot.Students))
		for _, sc := range snapshot.Students {
			students = append(students, summarizeStudent(sc))
		}
		return &models.GroupStats{
			GroupSummary: summarizeGroup(snapshot.Group),
			Window:       window,
			Students:     students,
		}, nil
	})
}

// Trend returns the daily attendance percentage of every date with graded
// marks in the window, newest first.
func (s *AnalyticsService) Trend(ctx context.Context, periodDays int) ([]models.TrendPoint, bool, error) {
	return s.trendAt(ctx, s.Today(), periodDays)
}

func (s *AnalyticsService) trendAt(ctx context.Context, end models.Date, periodDays int) ([]models.TrendPoint, bool, error) {
	window, err := s.window(end, periodDays)
	if err != nil {
		return nil, false, err
	}
	key := makeAnalyticsCacheKey("trend", window.To.String(), strconv.Itoa(periodDays))
	return cached(ctx, s.cache, key, func() ([]models.TrendPoint, error) {
		rows, err := observe(s, "analytics_trend", func() ([]models.DailyCounts, error) {
			return s.repo.DailyCounts(ctx, window)
		})
		if err != nil {
			return nil, storageError(s.logger, err, "failed to load attendance trend")
		}
		return buildTrend(rows), nil
	})
}

// Ranking returns the best and worst groups by attendance percentage.
func (s *AnalyticsService) Ranking(ctx context.Context, limit, periodDays int) (*models.GroupRanking, bool, error) {
	return s.rankingAt(ctx, s.Today(), limit, periodDays)
}

func (s *AnalyticsService) rankingAt(ctx context.Context, end models.Date, limit, periodDays int) (*models.GroupRanking, bool, error) {
	if limit < 1 || limit > maxRankingLimit {
		return nil, false, appErrors.Clone(appErrors.ErrInvalidInput, "limit must be between 1 and 50")
	}
	window, err := s.window(end, periodDays)
	if err != nil {
		return nil, false, err
	}
	key := makeAnalyticsCacheKey("ranking", window.To.String(), strconv.Itoa(periodDays), strconv.Itoa(limit))
	return cached(ctx, s.cache, key, func() (*models.GroupRanking, error) {
		rows, err := s.groupCounts(ctx, window)
		if err != nil {
			return nil, err
		}
		best, worst := rankGroups(rows, limit)
		return &models.GroupRanking{Window: window, Best: best, Worst: worst}, nil
	})
}

// GroupCategories lists groups at or above 90% and below 70%.
func (s *AnalyticsService) GroupCategories(ctx context.Context, periodDays int) (*models.GroupCategories, bool, error) {
	return s.categoriesAt(ctx, s.Today(), periodDays)
}

func (s *AnalyticsService) categoriesAt(ctx context.Context, end models.Date, periodDays int) (*models.GroupCategories, bool, error) {
	window, err := s.window(end, periodDays)
	if err != nil {
		return nil, false, err
	}
	key := makeAnalyticsCacheKey("categories", window.To.String(), strconv.Itoa(periodDays))
	return cached(ctx, s.cache, key, func() (*models.GroupCategories, error) {
		rows, err := s.groupCounts(ctx, window)
		if err != nil {
			return nil, err
		}
		excellent, critical := categorizeGroups(rows, excellentThreshold, criticalThreshold)
		return &models.GroupCategories{
			Window:             window,
			ExcellentThreshold: excellentThreshold,
			CriticalThreshold:  criticalThreshold,
			Excellent:          excellent,
			Critical:           critical,
		}, nil
	})
}

func (s *AnalyticsService) groupCounts(ctx context.Context, window models.DateRange) ([]models.GroupCounts, error) {
	rows, err := observe(s, "analytics_groups", func() ([]models.GroupCounts, error) {
		return s.repo.GroupCounts(ctx, window)
	})
	if err != nil {
		return nil, storageError(s.logger, err, "failed to load group attendance")
	}
	return rows, nil
}

// ProblemStudents returns students with at least the given number of absences.
func (s *AnalyticsService) ProblemStudents(ctx context.Context, params models.ProblemStudentParams) ([]models.StudentSummary, bool, error) {
	if err := s.validator.Struct(params); err != nil {
		return nil, false, invalidInput(err, "invalid problem student parameters")
	}
	window := models.WindowEnding(s.Today(), params.PeriodDays)

	key := makeAnalyticsCacheKey("problem-students", window.To.String(), strconv.Itoa(params.PeriodDays), strconv.Itoa(params.MinimumAbsences), params.GroupID)
	return cached(ctx, s.cache, key, func() ([]models.StudentSummary, error) {
		rows, err := observe(s, "analytics_problem_students", func() ([]models.StudentCounts, error) {
			return s.repo.StudentCounts(ctx, window, params.MinimumAbsences, params.GroupID)
		})
		if err != nil {
			return nil, storageError(s.logger, err, "failed to load problem students")
		}
		return selectProblemStudents(rows, params.MinimumAbsences), nil
	})
}

// TeacherCompliance compares the classes a teacher registered against those
// expected since each assignment was created or the window started.
func (s *AnalyticsService) TeacherCompliance(ctx context.Context, teacherID string, periodDays int) (*models.TeacherCompliance, bool, error) {
	if err := s.validator.Var(teacherID, "required,uuid"); err != nil {
		return nil, false, invalidInput(err, "teacher id must be a uuid")
	}
	window, err := s.window(s.Today(), periodDays)
	if err != nil {
		return nil, false, err
	}

	key := makeAnalyticsCacheKey("teacher", teacherID, window.To.String(), strconv.Itoa(periodDays))
	return cached(ctx, s.cache, key, func() (*models.TeacherCompliance, error) {
		start := time.Now()
		name, activities, err := s.repo.TeacherActivity(ctx, teacherID, window)
		s.metrics.ObserveDBQuery("analytics_teacher", time.Since(start))
		if err != nil {
			return nil, s.notFoundOr(err, "teacher not found", "failed to load teacher compliance")
		}
		report := teacherCompliance(teacherID, name, activities, window)
		return &report, nil
	})
}

// ProblemTeachers lists teachers whose compliance is below threshold.
func (s *AnalyticsService) ProblemTeachers(ctx context.Context, periodDays int, threshold float64) ([]models.TeacherComplianceSummary, bool, error) {
	if threshold < 0 || threshold > 100 {
		return nil, false, appErrors.Clone(appErrors.ErrInvalidInput, "threshold must be between 0 and 100")
	}
	window, err := s.window(s.Today(), periodDays)
	if err != nil {
		return nil, false, err
	}

	key := makeAnalyticsCacheKey("problem-teachers", window.To.String(), strconv.Itoa(periodDays), strconv.FormatFloat(threshold, 'f', -1, 64))
	return cached(ctx, s.cache, key, func() ([]models.TeacherComplianceSummary, error) {
		activities, err := observe(s, "analytics_problem_teachers", func() ([]models.AssignmentActivity, error) {
			return s.repo.AllActivity(ctx, window)
		})
		if err != nil {
			return nil, storageError(s.logger, err, "failed to load teacher activity")
		}
		return selectProblemTeachers(activities, window, threshold), nil
	})
}

// MissingClassesToday lists today's classes split into unregistered ones,
// placed against the current time, and registered ones graded by timeliness.
// It depends on the wall clock and is never cached.
func (s *AnalyticsService) MissingClassesToday(ctx context.Context) (*models.DailyClassReport, bool, error) {
	now := s.now().In(s.loc)
	today := models.DateOf(now)
	clock := models.ClockOf(now)

	weekday, ok := models.WeekdayOf(today.Weekday())
	if !ok {
		report := dailyClassReport(today, clock, nil)
		return &report, false, nil
	}

	classes, err := observe(s, "analytics_missing_classes", func() ([]models.ScheduledClass, error) {
		return s.repo.ScheduledClasses(ctx, today, weekday)
	})
	if err != nil {
		return nil, false, storageError(s.logger, err, "failed to load today's classes")
	}
	report := dailyClassReport(today, clock, classes)
	return &report, false, nil
}

// TeacherHistory lists the class meetings expected between params.From and
// params.To, newest first, with whether and how punctually each was
// registered. It depends on the wall clock and is never cached.
func (s *AnalyticsService) TeacherHistory(ctx context.Context, params models.RegistrationHistoryParams) (*models.RegistrationHistory, bool, error) {
	if err := s.validator.Struct(params); err != nil {
		return nil, false, invalidInput(err, "teacherId and groupId must be uuids")
	}
	now := s.now().In(s.loc)
	today := models.DateOf(now)
	if params.To.IsZero() {
		params.To = today
	}
	if params.From.IsZero() {
		params.From = params.To.AddDays(-DefaultPeriodDays)
	}
	if params.From.After(params.To) {
		return nil, false, appErrors.Clone(appErrors.ErrInvalidInput, "from must not be after to")
	}
	days := params.To.DaysSince(params.From)
	if days > maxPeriodDays {
		return nil, false, appErrors.Clone(appErrors.ErrInvalidInput, "the period must not exceed 365 days")
	}
	window := models.DateRange{From: params.From, To: params.To, PeriodDays: days}

	start := time.Now()
	classes, registrations, err := s.repo.RegistrationHistory(ctx, window, params.TeacherID, params.GroupID)
	s.metrics.ObserveDBQuery("analytics_registration_history", time.Since(start))
	if err != nil {
		return nil, false, storageError(s.logger, err, "failed to load registration history")
	}
	history := registrationHistory(classes, registrations, window, today, models.ClockOf(now))
	return &history, false, nil
}

// DailyMetrics returns distinct students per status on date. A zero date
// means today.
func (s *AnalyticsService) DailyMetrics(ctx context.Context, date models.Date) (*models.DailyMetrics, bool, error) {
	if date.IsZero() {
		date = s.Today()
	}
	key := makeAnalyticsCacheKey("metrics", date.String())
	return cached(ctx, s.cache, key, func() (*models.DailyMetrics, error) {
		headcount, err := observe(s, "analytics_metrics", func() (*models.DailyHeadcount, error) {
			return s.repo.DailyHeadcount(ctx, date)
		})
		if err != nil {
			return nil, storageError(s.logger, err, "failed to load daily metrics")
		}
		metrics := dailyMetrics(date, *headcount)
		return &metrics, nil
	})
}

// Alerts counts students over the weekly absence limit, teachers with
// unregistered classes and groups with perfect attendance on date.
func (s *AnalyticsService) Alerts(ctx context.Context, date models.Date) (*models.Alerts, bool, error) {
	if date.IsZero() {
		date = s.Today()
	}
	key := makeAnalyticsCacheKey("alerts", date.String())
	return cached(ctx, s.cache, key, func() (*models.Alerts, error) {
		weekday, _ := models.WeekdayOf(date.Weekday())
		window := models.WindowEnding(date, alertAbsenceDays)
		counts, err := observe(s, "analytics_alerts", func() (*models.AlertCounts, error) {
			return s.repo.AlertCounts(ctx, date, weekday, window, alertAbsenceLimit)
		})
		if err != nil {
			return nil, storageError(s.logger, err, "failed to load alerts")
		}
		return &models.Alerts{
			Date:               date,
			AbsenceLimit:       alertAbsenceLimit,
			AbsenceWindowDays:  alertAbsenceDays,
			StudentsOverLimit:  counts.StudentsOverLimit,
			TeachersPending:    counts.TeachersPending,
			PerfectGroupsToday: counts.PerfectGroups,
		}, nil
	})
}

// Dashboard composes metrics, a weekly trend, the ranking, alerts and group
// categories for date. Sections are loaded concurrently and the first failure
// cancels the rest.
func (s *AnalyticsService) Dashboard(ctx context.Context, date models.Date) (*dto.DashboardResponse, bool, error) {
	if date.IsZero() {
		date = s.Today()
	}
	key := makeAnalyticsCacheKey("dashboard", date.String())
	return cached(ctx, s.cache, key, func() (*dto.DashboardResponse, error) {
		resp := &dto.DashboardResponse{Date: date}
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			metrics, _, err := s.DailyMetrics(gctx, date)
			if err == nil {
				resp.Metrics = *metrics
			}
			return err
		})
		g.Go(func() error {
			trend, _, err := s.trendAt(gctx, date, DefaultTrendDays)
			resp.Trend = trend
			return err
		})
		g.Go(func() error {
			ranking, _, err := s.rankingAt(gctx, date, DefaultRankingLimit, DefaultPeriodDays)
			if err == nil {
				resp.Ranking = *ranking
			}
			return err
		})
		g.Go(func() error {
			alerts, _, err := s.Alerts(gctx, date)
			if err == nil {
				resp.Alerts = *alerts
			}
			return err
		})
		g.Go(func() error {
			categories, _, err := s.categoriesAt(gctx, date, DefaultPeriodDays)
			if err == nil {
				resp.Categories = *categories
			}
			return err
		})

		if err := g.Wait(); err != nil {
			return nil, err
		}
		return resp, nil
	})
}

func (s *AnalyticsService) window(end models.Date, periodDays int) (models.DateRange, error) {
	if periodDays < 1 || periodDays > maxPeriodDays {
		return models.DateRange{}, appErrors.Clone(appErrors.ErrInvalidInput, "periodDays must be between 1 and 365")
	}
	return models.WindowEnding(end, periodDays), nil
}

func (s *AnalyticsService) notFoundOr(err error, notFound, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return storageError(s.logger, err, message)
}

func observe[T any](s *AnalyticsService, label string, load func() (T, error)) (T, error) {
	start := time.Now()
	value, err := load()
	s.metrics.ObserveDBQuery(label, time.Since(start))
	return value, err
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}
