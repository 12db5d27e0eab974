package models

// Plan represents a subscription tier controlling the booking ceiling.
type Plan string

const (
	PlanFree   Plan = "free"
	PlanActiva Plan = "activa"
)

// Valid returns true when the plan is a supported value.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanActiva:
		return true
	default:
		return false
	}
}

// planBookingLimits maps each plan to its maximum concurrent bookings.
var planBookingLimits = map[Plan]int{
	PlanFree:   4,
	PlanActiva: 12,
}

// BookingLimit returns the maximum concurrent bookings for the plan.
// Unknown plans fall back to the free tier ceiling.
func (p Plan) BookingLimit() int {
	if limit, ok := planBookingLimits[p]; ok {
		return limit
	}
	return planBookingLimits[PlanFree]
}

// DashboardFor maps a role to the dashboard it is redirected to.
func DashboardFor(role UserRole) string {
	switch role {
	case RoleAdmin:
		return "admin"
	case RoleInstructor:
		return "instructor"
	default:
		return "alumna"
	}
}
