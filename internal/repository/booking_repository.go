package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flowstudio/studio-api/internal/models"
)

const bookingDetailColumns = "b.id, b.class_id, b.user_email, b.created_at, c.title AS class_title, c.level AS class_level, c.starts_at AS class_starts_at"

// BookingRepository manages persistence for class bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Reserve creates a booking only while the class has free capacity. The
// capacity check and the insert run in one transaction holding a row lock on
// the class, so concurrent reservations cannot exceed the ceiling.
func (r *BookingRepository) Reserve(ctx context.Context, booking *models.Booking) (models.ReserveStatus, error) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var capacity sql.NullInt64
	if err := tx.GetContext(ctx, &capacity, `SELECT capacity FROM classes WHERE id = $1 FOR UPDATE`, booking.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ReserveClassMissing, nil
		}
		return 0, fmt.Errorf("lock class for reserve: %w", err)
	}

	var count int64
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM bookings WHERE class_id = $1`, booking.ClassID); err != nil {
		return 0, fmt.Errorf("count bookings for reserve: %w", err)
	}
	if capacity.Valid && count >= capacity.Int64 {
		return models.ReserveFull, nil
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO bookings (id, class_id, user_email, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (class_id, user_email) DO NOTHING`,
		booking.ID, booking.ClassID, booking.UserEmail, booking.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert booking: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reserve rows affected: %w", err)
	}
	if rows == 0 {
		return models.ReserveDuplicate, nil
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reserve: %w", err)
	}
	return models.ReserveInserted, nil
}

// FindActive returns the booking for (class, user) when one exists.
func (r *BookingRepository) FindActive(ctx context.Context, classID, userEmail string) (*models.Booking, error) {
	const query = `SELECT id, class_id, user_email, created_at FROM bookings WHERE class_id = $1 AND user_email = $2`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, classID, userEmail); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListByUser returns a user's bookings with class metadata, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userEmail string) ([]models.BookingDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings b JOIN classes c ON c.id = b.class_id WHERE b.user_email = $1 ORDER BY b.created_at DESC", bookingDetailColumns)
	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, userEmail); err != nil {
		return nil, fmt.Errorf("list bookings by user: %w", err)
	}
	return bookings, nil
}

// ListByClass returns all bookings for a class, oldest first.
func (r *BookingRepository) ListByClass(ctx context.Context, classID string) ([]models.BookingDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings b JOIN classes c ON c.id = b.class_id WHERE b.class_id = $1 ORDER BY b.created_at ASC", bookingDetailColumns)
	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, classID); err != nil {
		return nil, fmt.Errorf("list bookings by class: %w", err)
	}
	return bookings, nil
}

// ListRecent returns the most recent bookings across the studio.
func (r *BookingRepository) ListRecent(ctx context.Context, limit int) ([]models.BookingDetail, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf("SELECT %s FROM bookings b JOIN classes c ON c.id = b.class_id ORDER BY b.created_at DESC LIMIT $1", bookingDetailColumns)
	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, limit); err != nil {
		return nil, fmt.Errorf("list recent bookings: %w", err)
	}
	return bookings, nil
}

// CountForClass returns the number of active bookings for a class.
func (r *BookingRepository) CountForClass(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE class_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count bookings for class: %w", err)
	}
	return count, nil
}

// CountForUser returns the number of concurrent bookings held by a user.
func (r *BookingRepository) CountForUser(ctx context.Context, userEmail string) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE user_email = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userEmail); err != nil {
		return 0, fmt.Errorf("count bookings for user: %w", err)
	}
	return count, nil
}

// CountTotal returns the number of bookings across all classes.
func (r *BookingRepository) CountTotal(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return count, nil
}

// Delete removes a booking by ID.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return nil
}
