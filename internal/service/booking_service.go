package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/flowstudio/studio-api/internal/models"
	appErrors "github.com/flowstudio/studio-api/pkg/errors"
)

type bookingRepository interface {
	Reserve(ctx context.Context, booking *models.Booking) (models.ReserveStatus, error)
	FindActive(ctx context.Context, classID, userEmail string) (*models.Booking, error)
	ListByUser(ctx context.Context, userEmail string) ([]models.BookingDetail, error)
	ListByClass(ctx context.Context, classID string) ([]models.BookingDetail, error)
	CountForUser(ctx context.Context, userEmail string) (int, error)
	Delete(ctx context.Context, id string) error
}

type bookingClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type bookingUserReader interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// BookingService manages the booking collection and enforces capacity and
// plan ceilings at reservation time.
type BookingService struct {
	repo    bookingRepository
	classes bookingClassReader
	users   bookingUserReader
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewBookingService constructs BookingService.
func NewBookingService(repo bookingRepository, classes bookingClassReader, users bookingUserReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{repo: repo, classes: classes, users: users, cache: cache, metrics: metrics, logger: logger}
}

// ListForUser returns a user's bookings with class metadata.
func (s *BookingService) ListForUser(ctx context.Context, userEmail string) ([]models.BookingDetail, error) {
	bookings, err := s.repo.ListByUser(ctx, userEmail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, nil
}

// ListForClass returns the roster of bookings for a class.
func (s *BookingService) ListForClass(ctx context.Context, classID string) ([]models.BookingDetail, error) {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	bookings, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class bookings")
	}
	return bookings, nil
}

// Toggle reserves a spot when the user has none, and cancels the existing
// booking otherwise. Capacity exhaustion and plan ceilings are reported as
// normal outcomes, never as errors; the two cannot be confused with remote
// failures.
func (s *BookingService) Toggle(ctx context.Context, classID, userEmail string) (*models.BookingToggleResult, error) {
	existing, err := s.repo.FindActive(ctx, classID, userEmail)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up booking")
	}

	if existing != nil {
		if err := s.repo.Delete(ctx, existing.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
		}
		s.invalidateDashboards(ctx)
		s.metrics.RecordBookingOutcome(string(models.BookingCancelled))
		return &models.BookingToggleResult{Outcome: models.BookingCancelled, Booking: existing}, nil
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.Status != models.ClassStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class is not published")
	}

	user, err := s.users.FindByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	used, err := s.repo.CountForUser(ctx, userEmail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count user bookings")
	}
	if used >= user.Plan.BookingLimit() {
		s.metrics.RecordBookingOutcome(string(models.BookingPlanLimit))
		return &models.BookingToggleResult{Outcome: models.BookingPlanLimit}, nil
	}

	booking := &models.Booking{ClassID: classID, UserEmail: userEmail}
	status, err := s.repo.Reserve(ctx, booking)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve booking")
	}

	switch status {
	case models.ReserveInserted:
		s.invalidateDashboards(ctx)
		s.metrics.RecordBookingOutcome(string(models.BookingReserved))
		return &models.BookingToggleResult{Outcome: models.BookingReserved, Booking: booking}, nil
	case models.ReserveFull:
		s.metrics.RecordBookingOutcome(string(models.BookingFull))
		return &models.BookingToggleResult{Outcome: models.BookingFull}, nil
	case models.ReserveDuplicate:
		// A concurrent request won the insert. The requested state holds, so
		// report the surviving booking as reserved.
		current, err := s.repo.FindActive(ctx, classID, userEmail)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
		}
		return &models.BookingToggleResult{Outcome: models.BookingReserved, Booking: current}, nil
	case models.ReserveClassMissing:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	default:
		return nil, appErrors.Clone(appErrors.ErrInternal, "unexpected reserve status")
	}
}

// Usage reports how many concurrent bookings the user holds against their
// plan ceiling.
func (s *BookingService) Usage(ctx context.Context, userEmail string) (used, limit int, err error) {
	user, err := s.users.FindByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	used, err = s.repo.CountForUser(ctx, userEmail)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count user bookings")
	}
	return used, user.Plan.BookingLimit(), nil
}

func (s *BookingService) invalidateDashboards(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
