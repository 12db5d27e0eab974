package models

import "time"

// Booking links a user to a class they reserved a spot in.
type Booking struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	UserEmail string    `db:"user_email" json:"user_email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BookingDetail joins booking rows with class metadata for list views.
type BookingDetail struct {
	Booking
	ClassTitle    string     `db:"class_title" json:"class_title"`
	ClassLevel    ClassLevel `db:"class_level" json:"class_level"`
	ClassStartsAt *time.Time `db:"class_starts_at" json:"class_starts_at,omitempty"`
}

// BookingOutcome names the branch a booking toggle took.
type BookingOutcome string

const (
	// BookingReserved means a new booking was created.
	BookingReserved BookingOutcome = "reserved"
	// BookingCancelled means an existing booking was removed.
	BookingCancelled BookingOutcome = "cancelled"
	// BookingFull means the class capacity is exhausted; no mutation happened.
	// This is a normal business outcome, not a failure.
	BookingFull BookingOutcome = "full"
	// BookingPlanLimit means the user reached their plan's concurrent-booking
	// ceiling; no mutation happened.
	BookingPlanLimit BookingOutcome = "plan_limit"
)

// BookingToggleResult reports what a toggle did along with the surviving or
// removed record.
type BookingToggleResult struct {
	Outcome BookingOutcome `json:"outcome"`
	Booking *Booking       `json:"booking,omitempty"`
}

// ReserveStatus reports the result of a capacity-bounded reservation attempt
// at the storage layer.
type ReserveStatus int

const (
	// ReserveInserted means the booking row was created.
	ReserveInserted ReserveStatus = iota
	// ReserveFull means the class capacity is exhausted.
	ReserveFull
	// ReserveDuplicate means a booking for (class, user) already exists.
	ReserveDuplicate
	// ReserveClassMissing means the class does not exist.
	ReserveClassMissing
)
