package models

import "time"

// ClassLevel enumerates the difficulty levels offered by the studio.
type ClassLevel string

const (
	LevelBasico     ClassLevel = "Básico"
	LevelIntermedio ClassLevel = "Intermedio"
	LevelAvanzado   ClassLevel = "Avanzado"
	LevelTodos      ClassLevel = "Todos los niveles"
)

// Valid returns true when the level is a supported value.
func (l ClassLevel) Valid() bool {
	switch l {
	case LevelBasico, LevelIntermedio, LevelAvanzado, LevelTodos:
		return true
	default:
		return false
	}
}

// ClassStatus controls catalog visibility.
type ClassStatus string

const (
	ClassStatusDraft     ClassStatus = "draft"
	ClassStatusPublished ClassStatus = "published"
)

// Valid returns true when the status is a supported value.
func (s ClassStatus) Valid() bool {
	switch s {
	case ClassStatusDraft, ClassStatusPublished:
		return true
	default:
		return false
	}
}

// TemporalStatus is derived at read time from the schedule and video fields;
// it is never stored.
type TemporalStatus string

const (
	TemporalUpcoming TemporalStatus = "upcoming"
	TemporalPast     TemporalStatus = "past"
	TemporalOnDemand TemporalStatus = "on_demand"
)

// Class represents a catalog entry stored in the classes table.
type Class struct {
	ID          string      `db:"id" json:"id"`
	Title       string      `db:"title" json:"title"`
	Level       ClassLevel  `db:"level" json:"level"`
	Discipline  string      `db:"discipline" json:"discipline"`
	Description *string     `db:"description" json:"description,omitempty"`
	StartsAt    *time.Time  `db:"starts_at" json:"starts_at,omitempty"`
	DurationMin *int        `db:"duration_min" json:"duration_min,omitempty"`
	Capacity    *int        `db:"capacity" json:"capacity,omitempty"`
	VideoURL    *string     `db:"video_url" json:"video_url,omitempty"`
	Status      ClassStatus `db:"status" json:"status"`
	CreatedBy   string      `db:"created_by" json:"created_by"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// TemporalStatus computes the derived schedule state relative to now.
// A class with a video and no fixed start is practicable at any time.
// A class with neither start nor video has no actionable schedule and
// reports upcoming by default.
func (c Class) TemporalStatus(now time.Time) TemporalStatus {
	if c.StartsAt == nil {
		if c.VideoURL != nil && *c.VideoURL != "" {
			return TemporalOnDemand
		}
		return TemporalUpcoming
	}
	end := *c.StartsAt
	if c.DurationMin != nil {
		end = end.Add(time.Duration(*c.DurationMin) * time.Minute)
	}
	if end.Before(now) {
		return TemporalPast
	}
	return TemporalUpcoming
}

// OnDemand reports whether the class is available as recorded video.
func (c Class) OnDemand() bool {
	return c.VideoURL != nil && *c.VideoURL != "" && c.StartsAt == nil
}

// ClassView decorates a class with derived read-time fields.
type ClassView struct {
	Class
	Temporal TemporalStatus `json:"temporal_status"`
}

// ClassAvailability extends a class with booking occupancy.
type ClassAvailability struct {
	Class
	BookedCount int  `db:"booked_count" json:"booked_count"`
	Available   *int `json:"available,omitempty"`
	IsFull      bool `json:"is_full"`
}

// ClassFilter captures catalog listing criteria.
type ClassFilter struct {
	Level      ClassLevel
	Discipline string
	Status     ClassStatus
	Search     string
	CreatedBy  string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
