package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flowstudio/studio-api/internal/models"
	appErrors "github.com/flowstudio/studio-api/pkg/errors"
)

const recentBookingsLimit = 10

type dashboardBookingRepo interface {
	ListByUser(ctx context.Context, userEmail string) ([]models.BookingDetail, error)
	ListRecent(ctx context.Context, limit int) ([]models.BookingDetail, error)
	CountForUser(ctx context.Context, userEmail string) (int, error)
	CountTotal(ctx context.Context) (int, error)
}

type dashboardClassRepo interface {
	ListByInstructorWithOccupancy(ctx context.Context, createdBy string) ([]models.ClassAvailability, error)
	CountByStatus(ctx context.Context, status models.ClassStatus) (int, error)
}

type dashboardProgressRepo interface {
	ListByUser(ctx context.Context, userEmail string) ([]models.ProgressEntry, error)
}

type dashboardUserRepo interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	CountActive(ctx context.Context) (int, error)
}

// DashboardService assembles role-specific home views. Payloads are cached
// under dashboard:* keys, which every booking and progress write invalidates.
type DashboardService struct {
	bookings dashboardBookingRepo
	classes  dashboardClassRepo
	progress dashboardProgressRepo
	users    dashboardUserRepo
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(bookings dashboardBookingRepo, classes dashboardClassRepo, progress dashboardProgressRepo, users dashboardUserRepo, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		bookings: bookings,
		classes:  classes,
		progress: progress,
		users:    users,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Alumna builds the member dashboard: upcoming bookings, plan quota usage
// and the practice summary.
func (s *DashboardService) Alumna(ctx context.Context, userEmail string) (*models.AlumnaDashboard, error) {
	cacheKey := fmt.Sprintf("dashboard:alumna:%s", userEmail)
	var cached models.AlumnaDashboard
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	user, err := s.users.FindByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	bookings, err := s.bookings.ListByUser(ctx, userEmail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	used, err := s.bookings.CountForUser(ctx, userEmail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count bookings")
	}

	entries, err := s.progress.ListByUser(ctx, userEmail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress")
	}

	dashboard := &models.AlumnaDashboard{
		UpcomingBookings: bookings,
		BookingsUsed:     used,
		BookingLimit:     user.Plan.BookingLimit(),
		Plan:             user.Plan,
		Progress:         buildProgressSummary(entries, s.now()),
		GeneratedAt:      s.now().UTC(),
	}
	s.storeCache(ctx, cacheKey, dashboard)
	return dashboard, nil
}

// Instructor builds the instructor dashboard: owned classes with occupancy.
func (s *DashboardService) Instructor(ctx context.Context, userEmail string) (*models.InstructorDashboard, error) {
	cacheKey := fmt.Sprintf("dashboard:instructor:%s", userEmail)
	var cached models.InstructorDashboard
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	classes, err := s.classes.ListByInstructorWithOccupancy(ctx, userEmail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructor classes")
	}

	dashboard := &models.InstructorDashboard{
		Classes:     classes,
		GeneratedAt: s.now().UTC(),
	}
	s.storeCache(ctx, cacheKey, dashboard)
	return dashboard, nil
}

// Admin builds the studio-wide dashboard.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, error) {
	const cacheKey = "dashboard:admin"
	var cached models.AdminDashboard
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	published, err := s.classes.CountByStatus(ctx, models.ClassStatusPublished)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count published classes")
	}
	drafts, err := s.classes.CountByStatus(ctx, models.ClassStatusDraft)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count draft classes")
	}
	totalBookings, err := s.bookings.CountTotal(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count bookings")
	}
	activeUsers, err := s.users.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	recent, err := s.bookings.ListRecent(ctx, recentBookingsLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent bookings")
	}

	dashboard := &models.AdminDashboard{
		PublishedClasses: published,
		DraftClasses:     drafts,
		TotalBookings:    totalBookings,
		ActiveUsers:      activeUsers,
		RecentBookings:   recent,
		GeneratedAt:      s.now().UTC(),
	}
	s.storeCache(ctx, cacheKey, dashboard)
	return dashboard, nil
}

func (s *DashboardService) storeCache(ctx context.Context, key string, value interface{}) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard", zap.String("key", key), zap.Error(err))
	}
}
