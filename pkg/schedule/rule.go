package schedule

import (
	"fmt"
	"time"

	"github.com/kalenda/kalenda/pkg/series"
	"github.com/teambition/rrule-go"
)

var ruleWeekdays = map[series.Weekday]rrule.Weekday{
	series.Monday:    rrule.MO,
	series.Tuesday:   rrule.TU,
	series.Wednesday: rrule.WE,
	series.Thursday:  rrule.TH,
	series.Friday:    rrule.FR,
	series.Saturday:  rrule.SA,
	series.Sunday:    rrule.SU,
}

// buildRule translates a series' recurrence fields into an iterable rule,
// anchored at the series start so phase alignment (e.g. the every-other-week
// phase of a fortnightly rule) is always computed from the true anchor.
// Returns nil for single events (FrequencyNever).
//
// The rule's upper bound is min(series until, windowEnd); both bounds are
// inclusive. No lower bound is applied here: truncation to the window start
// happens during expansion so that iteration always starts at the anchor.
func buildRule(s series.Series, windowEnd time.Time) (*rrule.RRule, error) {
	if s.Frequency == series.FrequencyNever {
		return nil, nil
	}

	until := windowEnd.UTC()
	if s.Until != nil && s.Until.Before(until) {
		until = s.Until.UTC()
	}

	opt := rrule.ROption{
		Dtstart:  s.Start.UTC(),
		Until:    until,
		Interval: s.Interval,
	}
	if opt.Interval < 1 {
		opt.Interval = 1
	}

	switch s.Frequency {
	case series.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case series.FrequencyWorkday:
		// Always Mon-Fri, one-week step, regardless of stored weekdays or interval.
		opt.Freq = rrule.WEEKLY
		opt.Interval = 1
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
	case series.FrequencyWeekly, series.FrequencyFortnightly:
		opt.Freq = rrule.WEEKLY
		if s.Frequency == series.FrequencyFortnightly {
			opt.Interval = 2
		}
		opt.Byweekday = weekdaySet(s)
	default:
		return nil, fmt.Errorf("unsupported frequency %q", s.Frequency)
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence rule: %w", err)
	}
	return rule, nil
}

// weekdaySet maps the stored weekday symbols onto rule weekdays, ignoring
// unknown symbols. An empty result falls back to the anchor's own weekday.
func weekdaySet(s series.Series) []rrule.Weekday {
	weekdays := make([]rrule.Weekday, 0, len(s.Weekdays))
	for _, wd := range s.Weekdays {
		if rw, ok := ruleWeekdays[wd]; ok {
			weekdays = append(weekdays, rw)
		}
	}
	if len(weekdays) == 0 {
		weekdays = append(weekdays, ruleWeekdays[series.WeekdayOf(s.Start.UTC())])
	}
	return weekdays
}
