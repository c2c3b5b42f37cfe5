package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intelliwatt/internal/analysis/domain"
	"intelliwatt/internal/calendar"
	"intelliwatt/internal/meterdata/domain"
)

// IntervalReader loads canonical intervals for a meter over a UTC range.
type IntervalReader interface {
	ListRange(ctx context.Context, esiid, meter string, from, to time.Time) ([]meterdata.CanonicalInterval, error)
}

// UsageWindow identifies the months and meter a bucket computation covers.
type UsageWindow struct {
	ESIID  string
	Meter  string
	Months []string
}

// UsageApplicationService computes monthly bucket totals from stored intervals.
type UsageApplicationService struct {
	reader IntervalReader
	cal    *calendar.Resolver
}

// NewUsageApplicationService constructs the service.
func NewUsageApplicationService(reader IntervalReader, cal *calendar.Resolver) (*UsageApplicationService, error) {
	if reader == nil {
		return nil, errors.New("usage app service: nil interval reader")
	}
	if cal == nil {
		return nil, errors.New("usage app service: nil calendar resolver")
	}
	return &UsageApplicationService{reader: reader, cal: cal}, nil
}

// ComputeBuckets loads the window's intervals and aggregates them into the
// requested bucket keys. The window's months must be contiguous month keys;
// the interval query spans from the first month's civil start to the last
// month's civil end.
//
// The second return value counts stored intervals per requested month,
// before exclusions. A zero count marks a month with no data at all, as
// opposed to a month whose buckets genuinely summed to zero.
func (s *UsageApplicationService) ComputeBuckets(
	ctx context.Context,
	window UsageWindow,
	required []analysis.BucketKey,
	opts analysis.AggregateOptions,
) (analysis.MonthlyBucketTotals, map[string]int, error) {
	if window.ESIID == "" {
		return nil, nil, meterdata.ErrEmptyESIID
	}
	if window.Meter == "" {
		return nil, nil, meterdata.ErrEmptyMeter
	}
	if len(window.Months) == 0 {
		return nil, nil, analysis.ErrNoMonths
	}

	first, _, ok := s.cal.MonthBounds(window.Months[0])
	if !ok {
		return nil, nil, fmt.Errorf("usage app service: bad month key %q", window.Months[0])
	}
	last := window.Months[len(window.Months)-1]
	_, end, ok := s.cal.MonthBounds(last)
	if !ok {
		return nil, nil, fmt.Errorf("usage app service: bad month key %q", last)
	}

	intervals, err := s.reader.ListRange(ctx, window.ESIID, window.Meter, first, end)
	if err != nil {
		return nil, nil, err
	}

	counts := make(map[string]int, len(window.Months))
	for _, monthKey := range window.Months {
		counts[monthKey] = 0
	}
	for _, ci := range intervals {
		monthKey := s.cal.MonthKey(ci.TS)
		if _, wanted := counts[monthKey]; wanted {
			counts[monthKey]++
		}
	}

	totals, err := analysis.Aggregate(s.cal, intervals, window.Months, required, opts)
	if err != nil {
		return nil, nil, err
	}
	return totals, counts, nil
}
