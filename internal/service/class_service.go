package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/flowstudio/studio-api/internal/models"
	appErrors "github.com/flowstudio/studio-api/pkg/errors"
)

type classCatalogRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

type classBookingCounter interface {
	CountForClass(ctx context.Context, classID string) (int, error)
}

// CreateClassRequest describes catalog creation payload.
type CreateClassRequest struct {
	Title       string     `json:"title" validate:"required"`
	Level       string     `json:"level" validate:"required"`
	Discipline  string     `json:"discipline" validate:"required"`
	Description *string    `json:"description,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	DurationMin *int       `json:"duration_min,omitempty" validate:"omitempty,gt=0"`
	Capacity    *int       `json:"capacity,omitempty" validate:"omitempty,gt=0"`
	VideoURL    *string    `json:"video_url,omitempty" validate:"omitempty,url"`
	Status      string     `json:"status,omitempty"`
}

// UpdateClassRequest describes a partial catalog update. Nil fields are left
// untouched.
type UpdateClassRequest struct {
	Title       *string    `json:"title,omitempty"`
	Level       *string    `json:"level,omitempty"`
	Discipline  *string    `json:"discipline,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	DurationMin *int       `json:"duration_min,omitempty" validate:"omitempty,gt=0"`
	Capacity    *int       `json:"capacity,omitempty" validate:"omitempty,gt=0"`
	VideoURL    *string    `json:"video_url,omitempty" validate:"omitempty,url"`
	Status      *string    `json:"status,omitempty"`
}

// ClassService orchestrates catalog workflows.
type ClassService struct {
	repo      classCatalogRepository
	bookings  classBookingCounter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewClassService constructs ClassService.
func NewClassService(repo classCatalogRepository, bookings classBookingCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, bookings: bookings, cache: cache, validator: validate, logger: logger, now: time.Now}
}

type cachedCatalogPage struct {
	Classes    []models.ClassView `json:"classes"`
	Pagination *models.Pagination `json:"pagination"`
}

// List returns catalog classes with derived temporal status and pagination
// metadata. Results are cached per filter and invalidated on any write.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassView, *models.Pagination, error) {
	key := catalogCacheKey(filter)
	if s.cache.Enabled() {
		var cached cachedCatalogPage
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached.Classes, cached.Pagination, nil
		}
	}

	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	now := s.now().UTC()
	views := make([]models.ClassView, 0, len(classes))
	for _, class := range classes {
		views = append(views, models.ClassView{Class: class, Temporal: class.TemporalStatus(now)})
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, cachedCatalogPage{Classes: views, Pagination: pagination}, 0); err != nil {
			s.logger.Warn("failed to cache catalog page", zap.Error(err))
		}
	}
	return views, pagination, nil
}

// Get returns a single class with its derived temporal status.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassView, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return &models.ClassView{Class: *class, Temporal: class.TemporalStatus(s.now().UTC())}, nil
}

// Availability reports booked count and remaining spots for a class.
func (s *ClassService) Availability(ctx context.Context, id string) (*models.ClassAvailability, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	booked, err := s.bookings.CountForClass(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count bookings")
	}

	availability := &models.ClassAvailability{Class: *class, BookedCount: booked}
	if class.Capacity != nil {
		remaining := *class.Capacity - booked
		if remaining < 0 {
			remaining = 0
		}
		availability.Available = &remaining
		availability.IsFull = booked >= *class.Capacity
	}
	return availability, nil
}

// Create registers a new catalog class owned by the acting instructor.
func (s *ClassService) Create(ctx context.Context, createdBy string, req CreateClassRequest) (*models.ClassView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	level := models.ClassLevel(req.Level)
	if !level.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown class level")
	}
	status := models.ClassStatus(req.Status)
	if req.Status == "" {
		status = models.ClassStatusDraft
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown class status")
	}

	class := &models.Class{
		Title:       req.Title,
		Level:       level,
		Discipline:  req.Discipline,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		DurationMin: req.DurationMin,
		Capacity:    req.Capacity,
		VideoURL:    req.VideoURL,
		Status:      status,
		CreatedBy:   createdBy,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.invalidateCatalog(ctx)
	return &models.ClassView{Class: *class, Temporal: class.TemporalStatus(s.now().UTC())}, nil
}

// Update applies a partial update to a class.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.ClassView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if req.Title != nil {
		class.Title = *req.Title
	}
	if req.Level != nil {
		level := models.ClassLevel(*req.Level)
		if !level.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown class level")
		}
		class.Level = level
	}
	if req.Discipline != nil {
		class.Discipline = *req.Discipline
	}
	if req.Description != nil {
		class.Description = req.Description
	}
	if req.StartsAt != nil {
		class.StartsAt = req.StartsAt
	}
	if req.DurationMin != nil {
		class.DurationMin = req.DurationMin
	}
	if req.Capacity != nil {
		class.Capacity = req.Capacity
	}
	if req.VideoURL != nil {
		class.VideoURL = req.VideoURL
	}
	if req.Status != nil {
		status := models.ClassStatus(*req.Status)
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown class status")
		}
		class.Status = status
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	s.invalidateCatalog(ctx)
	return &models.ClassView{Class: *class, Temporal: class.TemporalStatus(s.now().UTC())}, nil
}

// Delete removes a class. Dependent bookings and progress rows are removed by
// the cascading constraints.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *ClassService) invalidateCatalog(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "catalog:*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func catalogCacheKey(filter models.ClassFilter) string {
	return fmt.Sprintf("catalog:list:%s:%s:%s:%s:%s:%d:%d:%s:%s",
		filter.Level, filter.Discipline, filter.Status, filter.Search, filter.CreatedBy,
		filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}
