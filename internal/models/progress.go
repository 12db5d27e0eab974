package models

import "time"

// ProgressRecord marks a class as completed by a user.
type ProgressRecord struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	UserEmail   string    `db:"user_email" json:"user_email"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}

// ProgressEntry joins a completion with the class duration used for the
// minutes estimate. DurationMin is nil when the class has no duration or the
// class row no longer exists.
type ProgressEntry struct {
	ProgressRecord
	ClassTitle  *string `db:"class_title" json:"class_title,omitempty"`
	DurationMin *int    `db:"duration_min" json:"duration_min,omitempty"`
}

// ProgressOutcome names the branch a progress toggle took.
type ProgressOutcome string

const (
	// ProgressCompleted means a completion record was created.
	ProgressCompleted ProgressOutcome = "completed"
	// ProgressRemoved means an existing completion record was deleted.
	ProgressRemoved ProgressOutcome = "removed"
)

// ProgressToggleResult reports what a toggle did.
type ProgressToggleResult struct {
	Outcome ProgressOutcome `json:"outcome"`
	Record  *ProgressRecord `json:"record,omitempty"`
}

// MonthBucket aggregates completions for one calendar month.
type MonthBucket struct {
	Month        string `json:"month"`
	Count        int    `json:"count"`
	TotalMinutes int    `json:"total_minutes"`
}

// ProgressSummary carries the analytics derived from a user's completions.
type ProgressSummary struct {
	TotalCompleted   int           `json:"total_completed"`
	EstimatedMinutes int           `json:"estimated_minutes"`
	LastCompletedAt  *time.Time    `json:"last_completed_at,omitempty"`
	CurrentStreak    int           `json:"current_streak"`
	Months           []MonthBucket `json:"months"`
}
