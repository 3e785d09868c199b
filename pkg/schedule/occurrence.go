package schedule

import (
	"time"

	"github.com/google/uuid"
	"github.com/kalenda/kalenda/pkg/series"
)

// Occurrence is one concrete instance materialized from a series.
// Start is the effective (possibly overridden) instant used for display and
// ordering; OriginalStart is the instant the recurrence rule produced and is
// what exceptions key on. The two differ only when Overridden is true.
type Occurrence struct {
	SeriesUID       uuid.UUID
	Start           time.Time
	OriginalStart   time.Time
	DurationMinutes int
	Title           string
	Link            string
	Notes           string
	Location        string
	Host            string
	Category        string
	Frequency       series.Frequency
	Overridden      bool
}
