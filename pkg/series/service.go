package series

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kalenda/kalenda/internal/event_bus"
	"github.com/kalenda/kalenda/internal/utils"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidDuration  = errors.New("duration must be positive")
	ErrInvalidFrequency = errors.New("unknown frequency")
	ErrInvalidInterval  = errors.New("fortnightly series must have interval 2")
	ErrInvalidWeekday   = errors.New("unknown weekday symbol")
)

// Service owns series and exception writes: validation, normalization and
// the structural split operation. Expansion itself lives in pkg/schedule.
type Service struct {
	repo     Repository
	eventBus *event_bus.EventBus
	clock    utils.Clock
}

func NewService(repo Repository, eventBus *event_bus.EventBus, clock utils.Clock) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		clock:    clock,
	}
}

// SplitUpdate carries the optional field replacements applied to the new
// series created by Split. Nil fields keep the cloned value.
type SplitUpdate struct {
	Title           *string
	DurationMinutes *int
	Link            *string
	Notes           *string
	Location        *string
	Host            *string
	Category        *string
}

// SplitResult returns both halves of a split: the truncated original and the
// newly created series anchored at the split instant.
type SplitResult struct {
	Original Series
	New      Series
}

func (s *Service) CreateSeries(ctx context.Context, series Series) (*Series, error) {
	if err := validateAndNormalize(&series); err != nil {
		return nil, err
	}
	if series.Category == "" {
		series.Category = "Event"
	}
	series.IsDeleted = false
	series.CreatedAt = s.clock.Now().UTC()

	uid, err := s.repo.StoreSeries(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("failed to store series: %w", err)
	}
	series.UID = uuid.NullUUID{UUID: uid, Valid: true}

	s.publishSeriesEvent(ctx, "series.created", series)
	return &series, nil
}

func (s *Service) GetSeries(ctx context.Context, uid uuid.UUID) (*Series, error) {
	return s.repo.GetSeries(ctx, uid)
}

func (s *Service) ListSeries(ctx context.Context) ([]Series, error) {
	return s.repo.ListActiveSeries(ctx)
}

func (s *Service) UpdateSeries(ctx context.Context, series Series) (*Series, error) {
	if err := validateAndNormalize(&series); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSeries(ctx, series); err != nil {
		return nil, fmt.Errorf("failed to update series: %w", err)
	}

	s.publishSeriesEvent(ctx, "series.updated", series)
	return &series, nil
}

// DeleteSeries soft-deletes: the record stays but stops producing occurrences.
func (s *Service) DeleteSeries(ctx context.Context, uid uuid.UUID) error {
	if err := s.repo.SoftDeleteSeries(ctx, uid); err != nil {
		return err
	}
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, "series.deleted", event_bus.SeriesChanged{
		UID: uid.String(),
	}))
	if err != nil {
		log.Errorf("failed to publish series.deleted event: %v", err)
	}
	return nil
}

// UpsertException creates or replaces the override for one occurrence,
// identified by its original start instant. Re-overriding a previously
// deleted occurrence resurrects it: the deleted flag is always cleared here.
func (s *Service) UpsertException(ctx context.Context, seriesUid uuid.UUID, occurrenceStart time.Time, override Override) (*Exception, error) {
	if _, err := s.repo.GetSeries(ctx, seriesUid); err != nil {
		return nil, err
	}
	if override.DurationMinutes != nil && *override.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	if override.Start != nil {
		t := override.Start.UTC()
		override.Start = &t
	}

	ex := Exception{
		SeriesUID:       seriesUid,
		OccurrenceStart: occurrenceStart.UTC(),
		Deleted:         false,
		Override:        override,
		CreatedAt:       s.clock.Now().UTC(),
	}
	if err := s.repo.UpsertException(ctx, ex); err != nil {
		return nil, fmt.Errorf("failed to upsert exception: %w", err)
	}

	s.publishExceptionEvent(ctx, ex)
	return &ex, nil
}

// DeleteOccurrence suppresses a single occurrence. The instant given by the
// caller is whatever the occurrence currently displays at, so resolution is
// three-step: an exception keyed by that original time, then an exception
// whose override moved an occurrence to that time, then a fresh deletion
// exception.
func (s *Service) DeleteOccurrence(ctx context.Context, seriesUid uuid.UUID, occurrenceStart time.Time) error {
	if _, err := s.repo.GetSeries(ctx, seriesUid); err != nil {
		return err
	}
	occurrenceStart = occurrenceStart.UTC()

	target := occurrenceStart
	if _, err := s.repo.GetException(ctx, seriesUid, occurrenceStart); err != nil {
		if !errors.Is(err, ErrExceptionNotFound) {
			return err
		}
		moved, err := s.repo.FindExceptionByOverrideStart(ctx, seriesUid, occurrenceStart)
		if err != nil && !errors.Is(err, ErrExceptionNotFound) {
			return err
		}
		if moved != nil {
			target = moved.OccurrenceStart
		} else {
			ex := Exception{
				SeriesUID:       seriesUid,
				OccurrenceStart: occurrenceStart,
				Deleted:         true,
				CreatedAt:       s.clock.Now().UTC(),
			}
			if err := s.repo.UpsertException(ctx, ex); err != nil {
				return fmt.Errorf("failed to store deletion exception: %w", err)
			}
			s.publishExceptionEvent(ctx, ex)
			return nil
		}
	}

	if err := s.repo.MarkExceptionDeleted(ctx, seriesUid, target); err != nil {
		return err
	}
	s.publishExceptionEvent(ctx, Exception{
		SeriesUID:       seriesUid,
		OccurrenceStart: target,
		Deleted:         true,
	})
	return nil
}

// Split implements "edit all future occurrences": the original series is
// truncated to end just before the split instant, and a clone anchored at the
// split instant takes over from there. Exceptions whose original occurrence
// time is at or after the split move to the new series unchanged.
func (s *Service) Split(ctx context.Context, seriesUid uuid.UUID, splitAt time.Time, update SplitUpdate) (*SplitResult, error) {
	original, err := s.repo.GetSeries(ctx, seriesUid)
	if err != nil {
		return nil, err
	}
	splitAt = splitAt.UTC()

	// The new series inherits the bound the original had before truncation.
	inheritedUntil := original.Until

	truncatedUntil := splitAt.Add(-time.Second)
	truncated := *original
	truncated.Until = &truncatedUntil

	newSeries := Series{
		Title:           original.Title,
		Start:           splitAt,
		DurationMinutes: original.DurationMinutes,
		Frequency:       original.Frequency,
		Weekdays:        append([]Weekday(nil), original.Weekdays...),
		Interval:        original.Interval,
		Until:           inheritedUntil,
		Link:            original.Link,
		Notes:           original.Notes,
		Location:        original.Location,
		Host:            original.Host,
		Category:        original.Category,
		CreatedAt:       s.clock.Now().UTC(),
	}
	applySplitUpdate(&newSeries, update)
	if err := validateAndNormalize(&newSeries); err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		if err := repo.UpdateSeries(ctx, truncated); err != nil {
			return fmt.Errorf("failed to truncate original series: %w", err)
		}
		newUid, err := repo.StoreSeries(ctx, newSeries)
		if err != nil {
			return fmt.Errorf("failed to store split series: %w", err)
		}
		newSeries.UID = uuid.NullUUID{UUID: newUid, Valid: true}
		if err := repo.MoveExceptions(ctx, seriesUid, newUid, splitAt); err != nil {
			return fmt.Errorf("failed to move exceptions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.eventBus.Publish(event_bus.NewEvent(ctx, "series.split", event_bus.SeriesSplit{
		OriginalUID: seriesUid.String(),
		NewUID:      newSeries.UID.UUID.String(),
		SplitAt:     splitAt,
	}))
	if err != nil {
		log.Errorf("failed to publish series.split event: %v", err)
	}
	return &SplitResult{Original: truncated, New: newSeries}, nil
}

// validateAndNormalize enforces the series write invariants: positive
// duration, a known frequency, interval 2 for fortnightly. For every other
// frequency the interval is silently corrected to 1 rather than rejected.
func validateAndNormalize(series *Series) error {
	if !series.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if series.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	for _, wd := range series.Weekdays {
		if !wd.IsValid() {
			return ErrInvalidWeekday
		}
	}
	if series.Frequency == FrequencyFortnightly {
		if series.Interval != 2 {
			return ErrInvalidInterval
		}
	} else {
		series.Interval = 1
	}
	series.Start = series.Start.UTC()
	if series.Until != nil {
		u := series.Until.UTC()
		series.Until = &u
	}
	return nil
}

func applySplitUpdate(series *Series, update SplitUpdate) {
	if update.Title != nil {
		series.Title = *update.Title
	}
	if update.DurationMinutes != nil {
		series.DurationMinutes = *update.DurationMinutes
	}
	if update.Link != nil {
		series.Link = *update.Link
	}
	if update.Notes != nil {
		series.Notes = *update.Notes
	}
	if update.Location != nil {
		series.Location = *update.Location
	}
	if update.Host != nil {
		series.Host = *update.Host
	}
	if update.Category != nil {
		series.Category = *update.Category
	}
}

func (s *Service) publishSeriesEvent(ctx context.Context, eventType event_bus.EventType, series Series) {
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, eventType, event_bus.SeriesChanged{
		UID:       series.UID.UUID.String(),
		Title:     series.Title,
		Frequency: string(series.Frequency),
	}))
	if err != nil {
		log.Errorf("failed to publish %s event: %v", eventType, err)
	}
}

func (s *Service) publishExceptionEvent(ctx context.Context, ex Exception) {
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, "series.exception.updated", event_bus.SeriesExceptionChanged{
		SeriesUID:       ex.SeriesUID.String(),
		OccurrenceStart: ex.OccurrenceStart,
		Deleted:         ex.Deleted,
	}))
	if err != nil {
		log.Errorf("failed to publish series.exception.updated event: %v", err)
	}
}
