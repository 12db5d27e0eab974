package service

import (
	"context"
	"database/sql"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowstudio/studio-api/internal/models"
)

type mockBookingRepo struct {
	active        map[string]*models.Booking
	reserveStatus models.ReserveStatus
	count         int
	deletedIDs    []string
	reserved      []*models.Booking
}

func (m *mockBookingRepo) key(classID, userEmail string) string {
	return classID + "|" + userEmail
}

func (m *mockBookingRepo) Reserve(ctx context.Context, booking *models.Booking) (models.ReserveStatus, error) {
	if m.reserveStatus == models.ReserveInserted {
		booking.ID = "b-1"
		m.reserved = append(m.reserved, booking)
	}
	return m.reserveStatus, nil
}

func (m *mockBookingRepo) FindActive(ctx context.Context, classID, userEmail string) (*models.Booking, error) {
	booking, ok := m.active[m.key(classID, userEmail)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return booking, nil
}

func (m *mockBookingRepo) ListByUser(ctx context.Context, userEmail string) ([]models.BookingDetail, error) {
	return nil, nil
}

func (m *mockBookingRepo) ListByClass(ctx context.Context, classID string) ([]models.BookingDetail, error) {
	return nil, nil
}

func (m *mockBookingRepo) CountForUser(ctx context.Context, userEmail string) (int, error) {
	return m.count, nil
}

func (m *mockBookingRepo) Delete(ctx context.Context, id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	return nil
}

type mockBookingClassReader struct {
	class *models.Class
}

func (m *mockBookingClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if m.class == nil {
		return nil, sql.ErrNoRows
	}
	return m.class, nil
}

type mockBookingUserReader struct {
	user *models.User
}

func (m *mockBookingUserReader) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user == nil {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func publishedClass() *models.Class {
	return &models.Class{ID: "c-1", Title: "Vinyasa", Status: models.ClassStatusPublished}
}

func alumna(plan models.Plan) *models.User {
	return &models.User{ID: "u-1", Email: "ana@example.com", Role: models.RoleAlumna, Plan: plan, Active: true}
}

func newBookingService(repo *mockBookingRepo, class *models.Class, user *models.User) *BookingService {
	return NewBookingService(repo, &mockBookingClassReader{class: class}, &mockBookingUserReader{user: user}, nil, nil, zap.NewNop())
}

func TestBookingToggleReserves(t *testing.T) {
	repo := &mockBookingRepo{reserveStatus: models.ReserveInserted}
	svc := newBookingService(repo, publishedClass(), alumna(models.PlanFree))

	result, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingReserved, result.Outcome)
	require.NotNil(t, result.Booking)
	assert.Equal(t, "c-1", result.Booking.ClassID)
	assert.Len(t, repo.reserved, 1)
}

func TestBookingToggleCancelsExisting(t *testing.T) {
	repo := &mockBookingRepo{active: map[string]*models.Booking{
		"c-1|ana@example.com": {ID: "b-9", ClassID: "c-1", UserEmail: "ana@example.com"},
	}}
	svc := newBookingService(repo, publishedClass(), alumna(models.PlanFree))

	result, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, result.Outcome)
	assert.Equal(t, []string{"b-9"}, repo.deletedIDs)
	assert.Empty(t, repo.reserved)
}

func TestBookingToggleFullClassIsOutcomeNotError(t *testing.T) {
	repo := &mockBookingRepo{reserveStatus: models.ReserveFull}
	svc := newBookingService(repo, publishedClass(), alumna(models.PlanFree))

	result, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingFull, result.Outcome)
	assert.Nil(t, result.Booking)
}

func TestBookingTogglePlanLimitReached(t *testing.T) {
	repo := &mockBookingRepo{reserveStatus: models.ReserveInserted, count: 4}
	svc := newBookingService(repo, publishedClass(), alumna(models.PlanFree))

	result, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingPlanLimit, result.Outcome)
	assert.Empty(t, repo.reserved, "no reservation may happen at the ceiling")
}

func TestBookingToggleActivaPlanHasHigherCeiling(t *testing.T) {
	repo := &mockBookingRepo{reserveStatus: models.ReserveInserted, count: 4}
	svc := newBookingService(repo, publishedClass(), alumna(models.PlanActiva))

	result, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingReserved, result.Outcome)
}

func TestBookingToggleUnpublishedClassRejected(t *testing.T) {
	repo := &mockBookingRepo{reserveStatus: models.ReserveInserted}
	draft := &models.Class{ID: "c-1", Status: models.ClassStatusDraft}
	svc := newBookingService(repo, draft, alumna(models.PlanFree))

	_, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.Error(t, err)
	assert.Empty(t, repo.reserved)
}

func TestBookingToggleMissingClass(t *testing.T) {
	repo := &mockBookingRepo{}
	svc := newBookingService(repo, nil, alumna(models.PlanFree))

	_, err := svc.Toggle(context.Background(), "missing", "ana@example.com")
	require.Error(t, err)
}

func TestBookingToggleConcurrentDuplicateReportsReserved(t *testing.T) {
	winner := &models.Booking{ID: "b-7", ClassID: "c-1", UserEmail: "ana@example.com"}
	repo := &racingBookingRepo{winner: winner}
	svc := NewBookingService(repo, &mockBookingClassReader{class: publishedClass()}, &mockBookingUserReader{user: alumna(models.PlanFree)}, nil, nil, zap.NewNop())

	result, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingReserved, result.Outcome)
	require.NotNil(t, result.Booking)
	assert.Equal(t, "b-7", result.Booking.ID)
}

// racingBookingRepo simulates a concurrent toggle winning the insert: the
// first FindActive misses, Reserve reports a duplicate, and the second
// FindActive returns the surviving row.
type racingBookingRepo struct {
	mockBookingRepo
	winner *models.Booking
	finds  int
}

func (m *racingBookingRepo) FindActive(ctx context.Context, classID, userEmail string) (*models.Booking, error) {
	m.finds++
	if m.finds == 1 {
		return nil, sql.ErrNoRows
	}
	return m.winner, nil
}

func (m *racingBookingRepo) Reserve(ctx context.Context, booking *models.Booking) (models.ReserveStatus, error) {
	return models.ReserveDuplicate, nil
}

// statefulBookingRepo keeps real membership state so toggle sequences can be
// exercised end to end against a capacity ceiling.
type statefulBookingRepo struct {
	mockBookingRepo
	capacity int
	rows     map[string]*models.Booking
	seq      int
}

func newStatefulBookingRepo(capacity int) *statefulBookingRepo {
	return &statefulBookingRepo{capacity: capacity, rows: map[string]*models.Booking{}}
}

func (m *statefulBookingRepo) Reserve(ctx context.Context, booking *models.Booking) (models.ReserveStatus, error) {
	if _, ok := m.rows[m.key(booking.ClassID, booking.UserEmail)]; ok {
		return models.ReserveDuplicate, nil
	}
	if len(m.rows) >= m.capacity {
		return models.ReserveFull, nil
	}
	m.seq++
	booking.ID = "b-" + strconv.Itoa(m.seq)
	m.rows[m.key(booking.ClassID, booking.UserEmail)] = booking
	return models.ReserveInserted, nil
}

func (m *statefulBookingRepo) FindActive(ctx context.Context, classID, userEmail string) (*models.Booking, error) {
	booking, ok := m.rows[m.key(classID, userEmail)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return booking, nil
}

func (m *statefulBookingRepo) CountForUser(ctx context.Context, userEmail string) (int, error) {
	count := 0
	for _, booking := range m.rows {
		if booking.UserEmail == userEmail {
			count++
		}
	}
	return count, nil
}

func (m *statefulBookingRepo) Delete(ctx context.Context, id string) error {
	for key, booking := range m.rows {
		if booking.ID == id {
			delete(m.rows, key)
			return nil
		}
	}
	return sql.ErrNoRows
}

func TestBookingToggleRoundTripRestoresMembership(t *testing.T) {
	repo := newStatefulBookingRepo(5)
	svc := NewBookingService(repo, &mockBookingClassReader{class: publishedClass()}, &mockBookingUserReader{user: alumna(models.PlanFree)}, nil, nil, zap.NewNop())

	first, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingReserved, first.Outcome)

	second, err := svc.Toggle(context.Background(), "c-1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, second.Outcome)
	assert.Empty(t, repo.rows)
}

func TestBookingCapacityOneHandoff(t *testing.T) {
	repo := newStatefulBookingRepo(1)
	svc := NewBookingService(repo, &mockBookingClassReader{class: publishedClass()}, &mockBookingUserReader{user: alumna(models.PlanFree)}, nil, nil, zap.NewNop())

	resultA, err := svc.Toggle(context.Background(), "c-1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingReserved, resultA.Outcome)

	resultB, err := svc.Toggle(context.Background(), "c-1", "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingFull, resultB.Outcome)

	cancelA, err := svc.Toggle(context.Background(), "c-1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelA.Outcome)

	retryB, err := svc.Toggle(context.Background(), "c-1", "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BookingReserved, retryB.Outcome)
	assert.Len(t, repo.rows, 1)
}

func TestBookingUsage(t *testing.T) {
	repo := &mockBookingRepo{count: 2}
	svc := newBookingService(repo, publishedClass(), alumna(models.PlanActiva))

	used, limit, err := svc.Usage(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, used)
	assert.Equal(t, 12, limit)
}

func TestBookingListForClassMissingClass(t *testing.T) {
	svc := newBookingService(&mockBookingRepo{}, nil, alumna(models.PlanFree))

	_, err := svc.ListForClass(context.Background(), "missing")
	require.Error(t, err)
}
