package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kalenda/kalenda/pkg/series"
)

// SeriesProvider supplies the snapshot of series and exceptions the engine
// expands. The series repository satisfies it; expansion itself never touches
// storage directly.
type SeriesProvider interface {
	GetSeries(ctx context.Context, uid uuid.UUID) (*series.Series, error)
	ListActiveSeries(ctx context.Context) ([]series.Series, error)
	ListExceptions(ctx context.Context, seriesUid uuid.UUID) ([]series.Exception, error)
}

type Service struct {
	provider SeriesProvider
}

func NewService(provider SeriesProvider) *Service {
	return &Service{provider: provider}
}

// ExpandSeries materializes one series within the window.
func (s *Service) ExpandSeries(ctx context.Context, seriesUid uuid.UUID, windowStart, windowEnd time.Time) ([]Occurrence, error) {
	sr, err := s.provider.GetSeries(ctx, seriesUid)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.provider.ListExceptions(ctx, seriesUid)
	if err != nil {
		return nil, fmt.Errorf("failed to load exceptions: %w", err)
	}
	return ExpandSeries(*sr, exceptions, windowStart, windowEnd), nil
}

// ExpandAll materializes every active series within the window, merged into
// one sequence ordered by effective start.
func (s *Service) ExpandAll(ctx context.Context, windowStart, windowEnd time.Time) ([]Occurrence, error) {
	active, err := s.provider.ListActiveSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}

	sets := make([]SeriesExceptions, 0, len(active))
	for _, sr := range active {
		exceptions, err := s.provider.ListExceptions(ctx, sr.UID.UUID)
		if err != nil {
			return nil, fmt.Errorf("failed to load exceptions for series %s: %w", sr.UID.UUID, err)
		}
		sets = append(sets, SeriesExceptions{Series: sr, Exceptions: exceptions})
	}
	return ExpandAll(sets, windowStart, windowEnd), nil
}
