package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/flowstudio/studio-api/internal/models"
)

func newClassRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func classRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "level", "discipline", "description", "starts_at", "duration_min", "capacity", "video_url", "status", "created_by", "created_at", "updated_at"}).
		AddRow("c-1", "Vinyasa", models.LevelIntermedio, "yoga", nil, time.Now(), 60, 12, nil, models.ClassStatusPublished, "marta@example.com", time.Now(), time.Now())
}

func TestClassListFiltersAndPaginates(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE 1=1 AND level = $1 AND status = $2 ORDER BY starts_at ASC LIMIT 10 OFFSET 10")).
		WithArgs(models.LevelIntermedio, models.ClassStatusPublished).
		WillReturnRows(classRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM classes WHERE 1=1 AND level = $1 AND status = $2")).
		WithArgs(models.LevelIntermedio, models.ClassStatusPublished).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	classes, total, err := repo.List(context.Background(), models.ClassFilter{
		Level:     models.LevelIntermedio,
		Status:    models.ClassStatusPublished,
		Page:      2,
		PageSize:  10,
		SortBy:    "starts_at",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	require.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassListRejectsUnknownSortColumn(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	// An unknown sort column silently falls back to created_at.
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(classRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM classes WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), models.ClassFilter{SortBy: "capacity; DROP TABLE classes"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassFindByID(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1")).
		WithArgs("c-1").
		WillReturnRows(classRows())

	class, err := repo.FindByID(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, "Vinyasa", class.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassListByInstructorWithOccupancy(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "level", "discipline", "description", "starts_at", "duration_min", "capacity", "video_url", "status", "created_by", "created_at", "updated_at", "booked_count"}).
		AddRow("c-1", "Vinyasa", models.LevelIntermedio, "yoga", nil, time.Now(), 60, 12, nil, models.ClassStatusPublished, "marta@example.com", time.Now(), time.Now(), 8)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN bookings b ON b.class_id = c.id WHERE c.created_by = $1 GROUP BY c.id")).
		WithArgs("marta@example.com").
		WillReturnRows(rows)

	classes, err := repo.ListByInstructorWithOccupancy(context.Background(), "marta@example.com")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	require.Equal(t, 8, classes[0].BookedCount)
	require.NoError(t, mock.ExpectationsWereMet())
}
