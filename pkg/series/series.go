package series

import (
	"time"

	"github.com/google/uuid"
)

// Frequency defines how often a series repeats.
type Frequency string

const (
	FrequencyNever       Frequency = "NEVER"
	FrequencyDaily       Frequency = "DAILY"
	FrequencyWorkday     Frequency = "WORKDAY"
	FrequencyWeekly      Frequency = "WEEKLY"
	FrequencyFortnightly Frequency = "FORTNIGHTLY"
)

// IsValid reports whether f is one of the supported frequencies.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyNever, FrequencyDaily, FrequencyWorkday, FrequencyWeekly, FrequencyFortnightly:
		return true
	}
	return false
}

// Weekday is a two-letter weekday symbol (MO..SU).
type Weekday string

const (
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
	Sunday    Weekday = "SU"
)

// IsValid reports whether w is one of the seven weekday symbols.
func (w Weekday) IsValid() bool {
	switch w {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// WeekdayOf returns the symbol for the weekday of t.
func WeekdayOf(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// Series is a recurring event template. All times are UTC.
// Start anchors the recurrence: it is both the first occurrence and, for
// weekly-family frequencies with an empty weekday set, the inferred weekday.
type Series struct {
	UID             uuid.NullUUID
	Title           string
	Start           time.Time
	DurationMinutes int
	Frequency       Frequency
	Weekdays        []Weekday
	Interval        int
	Until           *time.Time
	Link            string
	Notes           string
	Location        string
	Host            string
	Category        string
	IsDeleted       bool
	CreatedAt       time.Time
}

// Exception overrides or deletes a single occurrence of a series.
// OccurrenceStart is the original, un-overridden instant the recurrence rule
// generated; it identifies the occurrence and must be unique per series.
type Exception struct {
	SeriesUID       uuid.UUID
	OccurrenceStart time.Time
	Deleted         bool
	Override        Override
	CreatedAt       time.Time
}

// Override holds the optional per-occurrence replacement values.
// Nil pointers mean "inherit from the series"; for string fields the empty
// string means unset, not "clear to empty".
type Override struct {
	Start           *time.Time
	DurationMinutes *int
	Title           string
	Link            string
	Notes           string
	Location        string
	Host            string
	Category        string
}
