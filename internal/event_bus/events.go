package event_bus

import "time"

// SeriesChanged is published on series create, update and soft delete
// ("series.created", "series.updated", "series.deleted").
type SeriesChanged struct {
	UID       string
	Title     string
	Frequency string
}

// SeriesSplit is published after a successful "edit all future" split
// ("series.split").
type SeriesSplit struct {
	OriginalUID string
	NewUID      string
	SplitAt     time.Time
}

// SeriesExceptionChanged is published whenever a per-occurrence exception is
// written ("series.exception.updated").
type SeriesExceptionChanged struct {
	SeriesUID       string
	OccurrenceStart time.Time
	Deleted         bool
}
