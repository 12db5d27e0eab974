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

func newProgressRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestProgressCreateInserts(t *testing.T) {
	db, mock, cleanup := newProgressRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_progress (id, class_id, user_email, completed_at) VALUES ($1, $2, $3, $4) ON CONFLICT (class_id, user_email) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "class-1", "ana@example.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.Create(context.Background(), &models.ProgressRecord{ClassID: "class-1", UserEmail: "ana@example.com"})
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressCreateDuplicateReportsNotCreated(t *testing.T) {
	db, mock, cleanup := newProgressRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_progress")).
		WithArgs(sqlmock.AnyArg(), "class-1", "ana@example.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.Create(context.Background(), &models.ProgressRecord{ClassID: "class-1", UserEmail: "ana@example.com"})
	require.NoError(t, err)
	require.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressListByUserJoinsClassDuration(t *testing.T) {
	db, mock, cleanup := newProgressRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	rows := sqlmock.NewRows([]string{"id", "class_id", "user_email", "completed_at", "class_title", "duration_min"}).
		AddRow("p-1", "class-1", "ana@example.com", time.Now(), "Vinyasa", 60).
		AddRow("p-2", "class-gone", "ana@example.com", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_progress p LEFT JOIN classes c ON c.id = p.class_id WHERE p.user_email = $1 ORDER BY p.completed_at DESC")).
		WithArgs("ana@example.com").
		WillReturnRows(rows)

	entries, err := repo.ListByUser(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].DurationMin)
	require.Nil(t, entries[1].DurationMin, "deleted class leaves duration unset")
	require.NoError(t, mock.ExpectationsWereMet())
}
