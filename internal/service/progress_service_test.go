package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowstudio/studio-api/internal/models"
)

type mockProgressRepo struct {
	records    map[string]*models.ProgressRecord
	entries    []models.ProgressEntry
	deletedIDs []string
}

func (m *mockProgressRepo) key(classID, userEmail string) string {
	return classID + "|" + userEmail
}

func (m *mockProgressRepo) Find(ctx context.Context, classID, userEmail string) (*models.ProgressRecord, error) {
	record, ok := m.records[m.key(classID, userEmail)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (m *mockProgressRepo) ListByUser(ctx context.Context, userEmail string) ([]models.ProgressEntry, error) {
	return m.entries, nil
}

func (m *mockProgressRepo) Create(ctx context.Context, record *models.ProgressRecord) (bool, error) {
	if m.records == nil {
		m.records = make(map[string]*models.ProgressRecord)
	}
	record.ID = "p-1"
	m.records[m.key(record.ClassID, record.UserEmail)] = record
	return true, nil
}

func (m *mockProgressRepo) Delete(ctx context.Context, id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	for key, record := range m.records {
		if record.ID == id {
			delete(m.records, key)
		}
	}
	return nil
}

type mockProgressClassReader struct {
	class *models.Class
}

func (m *mockProgressClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if m.class == nil {
		return nil, sql.ErrNoRows
	}
	return m.class, nil
}

func newProgressService(repo *mockProgressRepo, classes *mockProgressClassReader) *ProgressService {
	return NewProgressService(repo, classes, nil, zap.NewNop())
}

func TestProgressToggleCompletes(t *testing.T) {
	repo := &mockProgressRepo{}
	classes := &mockProgressClassReader{class: &models.Class{ID: "c-1", Status: models.ClassStatusPublished}}
	svc := newProgressService(repo, classes)

	result, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ProgressCompleted, result.Outcome)
	require.NotNil(t, result.Record)
	assert.Equal(t, "c-1", result.Record.ClassID)
}

func TestProgressToggleRemovesExisting(t *testing.T) {
	repo := &mockProgressRepo{records: map[string]*models.ProgressRecord{
		"c-1|ana@example.com": {ID: "p-9", ClassID: "c-1", UserEmail: "ana@example.com"},
	}}
	svc := newProgressService(repo, &mockProgressClassReader{})

	result, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ProgressRemoved, result.Outcome)
	assert.Equal(t, []string{"p-9"}, repo.deletedIDs)
}

func TestProgressToggleRoundTripLeavesNoRecord(t *testing.T) {
	repo := &mockProgressRepo{}
	classes := &mockProgressClassReader{class: &models.Class{ID: "c-1", Status: models.ClassStatusPublished}}
	svc := newProgressService(repo, classes)

	first, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ProgressCompleted, first.Outcome)

	second, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ProgressRemoved, second.Outcome)
	assert.Empty(t, repo.records)
}

func TestProgressToggleMissingClass(t *testing.T) {
	svc := newProgressService(&mockProgressRepo{}, &mockProgressClassReader{})

	_, err := svc.Toggle(context.Background(), "missing", "ana@example.com")
	require.Error(t, err)
}

// racingProgressRepo simulates a concurrent toggle winning the insert: the
// first Find misses, Create reports no row inserted, and the second Find
// returns the winner's record.
type racingProgressRepo struct {
	mockProgressRepo
	winner *models.ProgressRecord
	finds  int
}

func (m *racingProgressRepo) Find(ctx context.Context, classID, userEmail string) (*models.ProgressRecord, error) {
	m.finds++
	if m.finds == 1 {
		return nil, sql.ErrNoRows
	}
	return m.winner, nil
}

func (m *racingProgressRepo) Create(ctx context.Context, record *models.ProgressRecord) (bool, error) {
	return false, nil
}

func TestProgressToggleConcurrentInsertStillCompleted(t *testing.T) {
	repo := &racingProgressRepo{winner: &models.ProgressRecord{ID: "p-7", ClassID: "c-1", UserEmail: "ana@example.com"}}
	classes := &mockProgressClassReader{class: &models.Class{ID: "c-1"}}
	svc := NewProgressService(repo, classes, nil, zap.NewNop())

	result, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ProgressCompleted, result.Outcome)
	require.NotNil(t, result.Record)
	assert.Equal(t, "p-7", result.Record.ID)
}

func TestSummaryMinutesUseFallbackForMissingDuration(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	twenty := 20
	fortyFive := 45
	entries := []models.ProgressEntry{
		{ProgressRecord: models.ProgressRecord{CompletedAt: now}, DurationMin: &twenty},
		{ProgressRecord: models.ProgressRecord{CompletedAt: now}},
		{ProgressRecord: models.ProgressRecord{CompletedAt: now}, DurationMin: &fortyFive},
	}

	summary := buildProgressSummary(entries, now)
	assert.Equal(t, 3, summary.TotalCompleted)
	assert.Equal(t, 20+fallbackDurationMin+45, summary.EstimatedMinutes)
}

func TestSummaryStreakCountsConsecutiveDays(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	entries := []models.ProgressEntry{
		{ProgressRecord: models.ProgressRecord{CompletedAt: now}},
		{ProgressRecord: models.ProgressRecord{CompletedAt: now.AddDate(0, 0, -1)}},
		{ProgressRecord: models.ProgressRecord{CompletedAt: now.AddDate(0, 0, -2)}},
		// Gap at -3 and -4 breaks the streak before this one.
		{ProgressRecord: models.ProgressRecord{CompletedAt: now.AddDate(0, 0, -5)}},
	}

	summary := buildProgressSummary(entries, now)
	assert.Equal(t, 3, summary.CurrentStreak)
}

func TestSummaryStreakZeroWithoutTodayCompletion(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	entries := []models.ProgressEntry{
		{ProgressRecord: models.ProgressRecord{CompletedAt: now.AddDate(0, 0, -1)}},
	}

	summary := buildProgressSummary(entries, now)
	assert.Equal(t, 0, summary.CurrentStreak)
}

func TestSummaryMonthBucketsNewestFirst(t *testing.T) {
	now := time.Date(2025, 4, 20, 9, 0, 0, 0, time.UTC)
	sixty := 60
	entries := []models.ProgressEntry{
		{ProgressRecord: models.ProgressRecord{CompletedAt: time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)}, DurationMin: &sixty},
		{ProgressRecord: models.ProgressRecord{CompletedAt: time.Date(2025, 3, 18, 8, 0, 0, 0, time.UTC)}},
		{ProgressRecord: models.ProgressRecord{CompletedAt: time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)}},
	}

	summary := buildProgressSummary(entries, now)
	require.Len(t, summary.Months, 2)
	assert.Equal(t, "2025-04", summary.Months[0].Month)
	assert.Equal(t, 1, summary.Months[0].Count)
	assert.Equal(t, "2025-03", summary.Months[1].Month)
	assert.Equal(t, 2, summary.Months[1].Count)
	assert.Equal(t, 60+fallbackDurationMin, summary.Months[1].TotalMinutes)
}

func TestSummaryEmptyEntries(t *testing.T) {
	summary := buildProgressSummary(nil, time.Now())
	assert.Equal(t, 0, summary.TotalCompleted)
	assert.Equal(t, 0, summary.EstimatedMinutes)
	assert.Nil(t, summary.LastCompletedAt)
	assert.Empty(t, summary.Months)
}

func TestSummaryLastCompletedAtIsMax(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	latest := time.Date(2025, 6, 9, 20, 0, 0, 0, time.UTC)
	entries := []models.ProgressEntry{
		{ProgressRecord: models.ProgressRecord{CompletedAt: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)}},
		{ProgressRecord: models.ProgressRecord{CompletedAt: latest}},
		{ProgressRecord: models.ProgressRecord{CompletedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}},
	}

	summary := buildProgressSummary(entries, now)
	require.NotNil(t, summary.LastCompletedAt)
	assert.True(t, summary.LastCompletedAt.Equal(latest))
}
