package schedule

import (
	"sort"
	"time"

	"github.com/kalenda/kalenda/pkg/series"
)

// SeriesExceptions pairs a series with its full exception set. The expansion
// functions receive this snapshot explicitly and never reach out to storage.
type SeriesExceptions struct {
	Series     series.Series
	Exceptions []series.Exception
}

// ExpandSeries materializes one series into concrete occurrences within the
// inclusive window [windowStart, windowEnd] and applies its exceptions.
// It is a pure function: same inputs, same output, no shared state.
//
// A soft-deleted series, an inverted window, or a window with no matching
// occurrences all yield an empty result, never an error. Exceptions whose
// target time the rule never generates are inert. The result is ordered by
// effective start, which can differ from generation order when an override
// moves an occurrence.
func ExpandSeries(s series.Series, exceptions []series.Exception, windowStart, windowEnd time.Time) []Occurrence {
	occurrences := make([]Occurrence, 0)
	if s.IsDeleted || windowStart.After(windowEnd) {
		return occurrences
	}
	windowStart = windowStart.UTC()
	windowEnd = windowEnd.UTC()

	for _, t := range generate(s, windowStart, windowEnd) {
		occ, ok := applyExceptions(rawOccurrence(s, t), exceptions)
		if ok {
			occurrences = append(occurrences, occ)
		}
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})
	return occurrences
}

// ExpandAll expands every supplied series and merges the results into one
// sequence ordered by effective start. Occurrences at the same instant have
// no defined relative order.
func ExpandAll(sets []SeriesExceptions, windowStart, windowEnd time.Time) []Occurrence {
	merged := make([]Occurrence, 0)
	for _, set := range sets {
		merged = append(merged, ExpandSeries(set.Series, set.Exceptions, windowStart, windowEnd)...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})
	return merged
}

// generate produces the raw occurrence instants of s inside the window.
// Iteration starts at the series anchor, not the window edge: skipping
// instants below windowStart keeps phase alignment intact, and the rule
// iterator being strictly ascending makes the windowEnd check a safe early
// exit. All comparisons are UTC instants; no wall-clock arithmetic.
func generate(s series.Series, windowStart, windowEnd time.Time) []time.Time {
	if s.Frequency == series.FrequencyNever {
		start := s.Start.UTC()
		if !start.Before(windowStart) && !start.After(windowEnd) {
			return []time.Time{start}
		}
		return nil
	}

	rule, err := buildRule(s, windowEnd)
	if err != nil || rule == nil {
		return nil
	}

	var instants []time.Time
	next := rule.Iterator()
	for {
		t, ok := next()
		if !ok || t.After(windowEnd) {
			break
		}
		if t.Before(windowStart) {
			continue
		}
		instants = append(instants, t.UTC())
	}
	return instants
}

func rawOccurrence(s series.Series, start time.Time) Occurrence {
	return Occurrence{
		SeriesUID:       s.UID.UUID,
		Start:           start,
		OriginalStart:   start,
		DurationMinutes: s.DurationMinutes,
		Title:           s.Title,
		Link:            s.Link,
		Notes:           s.Notes,
		Location:        s.Location,
		Host:            s.Host,
		Category:        s.Category,
		Frequency:       s.Frequency,
		Overridden:      false,
	}
}

// applyExceptions resolves the exceptions targeting occ's original instant.
// Matching is exact-instant equality on the original start: an overridden
// occurrence is still identified by the time the rule generated, never by
// where an override moved it.
//
// The uniqueness invariant means at most one exception should match, but
// legacy data may carry duplicates, so precedence is defensive: any deleting
// match suppresses the occurrence outright, otherwise the last non-deleting
// match is authoritative. Returns false when the occurrence is suppressed.
func applyExceptions(occ Occurrence, exceptions []series.Exception) (Occurrence, bool) {
	key := occ.OriginalStart.UnixNano()

	var override *series.Exception
	for i := range exceptions {
		ex := &exceptions[i]
		if ex.OccurrenceStart.UnixNano() != key {
			continue
		}
		if ex.Deleted {
			return Occurrence{}, false
		}
		override = ex
	}
	if override == nil {
		return occ, true
	}

	occ.Overridden = true
	o := override.Override
	if o.Start != nil {
		occ.Start = o.Start.UTC()
	}
	// A non-positive override duration is treated as unset rather than
	// propagated; the owning collaborator should have rejected it anyway.
	if o.DurationMinutes != nil && *o.DurationMinutes > 0 {
		occ.DurationMinutes = *o.DurationMinutes
	}
	if o.Title != "" {
		occ.Title = o.Title
	}
	if o.Link != "" {
		occ.Link = o.Link
	}
	if o.Notes != "" {
		occ.Notes = o.Notes
	}
	if o.Location != "" {
		occ.Location = o.Location
	}
	if o.Host != "" {
		occ.Host = o.Host
	}
	if o.Category != "" {
		occ.Category = o.Category
	}
	return occ, true
}
