package models

import "time"

// AlumnaDashboard summarises a member's view: agenda, quota, progress.
type AlumnaDashboard struct {
	UpcomingBookings []BookingDetail `json:"upcoming_bookings"`
	BookingsUsed     int             `json:"bookings_used"`
	BookingLimit     int             `json:"booking_limit"`
	Plan             Plan            `json:"plan"`
	Progress         ProgressSummary `json:"progress"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// InstructorDashboard lists an instructor's classes with occupancy.
type InstructorDashboard struct {
	Classes     []ClassAvailability `json:"classes"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// AdminDashboard carries studio-wide counters.
type AdminDashboard struct {
	PublishedClasses int             `json:"published_classes"`
	DraftClasses     int             `json:"draft_classes"`
	TotalBookings    int             `json:"total_bookings"`
	ActiveUsers      int             `json:"active_users"`
	RecentBookings   []BookingDetail `json:"recent_bookings"`
	GeneratedAt      time.Time       `json:"generated_at"`
}
