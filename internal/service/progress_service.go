package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/flowstudio/studio-api/internal/models"
	appErrors "github.com/flowstudio/studio-api/pkg/errors"
)

// fallbackDurationMin is the practice-minutes estimate used when a completed
// class has no duration or its class row no longer exists.
const fallbackDurationMin = 30

// streakLookbackDays caps how far back the streak walk goes.
const streakLookbackDays = 365

type progressRepository interface {
	Find(ctx context.Context, classID, userEmail string) (*models.ProgressRecord, error)
	ListByUser(ctx context.Context, userEmail string) ([]models.ProgressEntry, error)
	Create(ctx context.Context, record *models.ProgressRecord) (bool, error)
	Delete(ctx context.Context, id string) error
}

type progressClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// ProgressService manages completion records and derives practice analytics.
type ProgressService struct {
	repo    progressRepository
	classes progressClassReader
	cache   *CacheService
	logger  *zap.Logger
	now     func() time.Time
}

// NewProgressService constructs ProgressService.
func NewProgressService(repo progressRepository, classes progressClassReader, cache *CacheService, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{repo: repo, classes: classes, cache: cache, logger: logger, now: time.Now}
}

// FetchForUser loads a user's completion records, newest first.
func (s *ProgressService) FetchForUser(ctx context.Context, userEmail string) ([]models.ProgressEntry, error) {
	entries, err := s.repo.ListByUser(ctx, userEmail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress")
	}
	return entries, nil
}

// Toggle marks a class completed when no record exists, and removes the
// completion otherwise.
func (s *ProgressService) Toggle(ctx context.Context, classID, userEmail string) (*models.ProgressToggleResult, error) {
	existing, err := s.repo.Find(ctx, classID, userEmail)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up progress")
	}

	if existing != nil {
		if err := s.repo.Delete(ctx, existing.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove progress")
		}
		s.invalidateDashboards(ctx)
		return &models.ProgressToggleResult{Outcome: models.ProgressRemoved, Record: existing}, nil
	}

	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	record := &models.ProgressRecord{ClassID: classID, UserEmail: userEmail, CompletedAt: s.now().UTC()}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create progress record")
	}
	if !created {
		// A concurrent toggle already marked it; the requested state holds.
		current, err := s.repo.Find(ctx, classID, userEmail)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress record")
		}
		return &models.ProgressToggleResult{Outcome: models.ProgressCompleted, Record: current}, nil
	}
	s.invalidateDashboards(ctx)
	return &models.ProgressToggleResult{Outcome: models.ProgressCompleted, Record: record}, nil
}

// Summary derives practice analytics from the user's completion records.
func (s *ProgressService) Summary(ctx context.Context, userEmail string) (*models.ProgressSummary, error) {
	entries, err := s.repo.ListByUser(ctx, userEmail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress")
	}
	summary := buildProgressSummary(entries, s.now().UTC())
	return &summary, nil
}

func buildProgressSummary(entries []models.ProgressEntry, now time.Time) models.ProgressSummary {
	summary := models.ProgressSummary{Months: []models.MonthBucket{}}
	summary.TotalCompleted = len(entries)

	byDay := make(map[string]struct{}, len(entries))
	byMonth := make(map[string]*models.MonthBucket)

	for _, entry := range entries {
		minutes := fallbackDurationMin
		if entry.DurationMin != nil {
			minutes = *entry.DurationMin
		}
		summary.EstimatedMinutes += minutes

		completed := entry.CompletedAt.UTC()
		if summary.LastCompletedAt == nil || completed.After(*summary.LastCompletedAt) {
			ts := completed
			summary.LastCompletedAt = &ts
		}

		byDay[completed.Format("2006-01-02")] = struct{}{}

		monthKey := completed.Format("2006-01")
		bucket, ok := byMonth[monthKey]
		if !ok {
			bucket = &models.MonthBucket{Month: monthKey}
			byMonth[monthKey] = bucket
		}
		bucket.Count++
		bucket.TotalMinutes += minutes
	}

	// Streak: consecutive calendar days with at least one completion, walking
	// backward from today; the first gap day breaks it.
	day := now
	for i := 0; i < streakLookbackDays; i++ {
		if _, ok := byDay[day.Format("2006-01-02")]; !ok {
			break
		}
		summary.CurrentStreak++
		day = day.AddDate(0, 0, -1)
	}

	months := make([]string, 0, len(byMonth))
	for key := range byMonth {
		months = append(months, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	for _, key := range months {
		summary.Months = append(summary.Months, *byMonth[key])
	}

	return summary
}

func (s *ProgressService) invalidateDashboards(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
