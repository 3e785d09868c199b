package schedule

import (
	"context"

	"github.com/google/uuid"
	"github.com/kalenda/kalenda/pkg/series"
)

// StubSeriesProvider is an in-memory SeriesProvider for tests.
type StubSeriesProvider struct {
	Series     map[uuid.UUID]series.Series
	Exceptions map[uuid.UUID][]series.Exception
	Err        error
}

func NewStubSeriesProvider() *StubSeriesProvider {
	return &StubSeriesProvider{
		Series:     make(map[uuid.UUID]series.Series),
		Exceptions: make(map[uuid.UUID][]series.Exception),
	}
}

func (p *StubSeriesProvider) Add(s series.Series, exceptions ...series.Exception) {
	p.Series[s.UID.UUID] = s
	p.Exceptions[s.UID.UUID] = exceptions
}

func (p *StubSeriesProvider) GetSeries(_ context.Context, uid uuid.UUID) (*series.Series, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	s, ok := p.Series[uid]
	if !ok || s.IsDeleted {
		return nil, series.ErrSeriesNotFound
	}
	return &s, nil
}

func (p *StubSeriesProvider) ListActiveSeries(_ context.Context) ([]series.Series, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	active := make([]series.Series, 0, len(p.Series))
	for _, s := range p.Series {
		if !s.IsDeleted {
			active = append(active, s)
		}
	}
	return active, nil
}

func (p *StubSeriesProvider) ListExceptions(_ context.Context, seriesUid uuid.UUID) ([]series.Exception, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Exceptions[seriesUid], nil
}

var _ SeriesProvider = (*StubSeriesProvider)(nil)
