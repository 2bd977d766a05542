package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-attendance-api/internal/models"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
)

const slotsCacheKey = "slots"

type timeSlotRepository interface {
	List(ctx context.Context) ([]models.TimeSlot, error)
	FindByID(ctx context.Context, id int) (*models.TimeSlot, error)
}

// SlotService exposes the fixed weekly timetable.
type SlotService struct {
	repo    timeSlotRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSlotService constructs a SlotService.
func NewSlotService(repo timeSlotRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *SlotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// List returns every slot ordered by weekday and start time. Slots are seeded
// and immutable so the list is cached without invalidation.
func (s *SlotService) List(ctx context.Context) ([]models.TimeSlot, error) {
	slots, _, err := cached(ctx, s.cache, slotsCacheKey, func() ([]models.TimeSlot, error) {
		start := time.Now()
		slots, err := s.repo.List(ctx)
		s.metrics.ObserveDBQuery("slots_list", time.Since(start))
		if err != nil {
			return nil, storageError(s.logger, err, "failed to list time slots")
		}
		return slots, nil
	})
	return slots, err
}

// Get returns a single slot.
func (s *SlotService) Get(ctx context.Context, id int) (*models.TimeSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return nil, storageError(s.logger, err, "failed to load time slot")
	}
	return slot, nil
}
