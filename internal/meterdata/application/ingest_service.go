package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"time"

	"intelliwatt/internal/calendar"
	"intelliwatt/internal/meterdata/domain"
	"intelliwatt/internal/meterdata/formats"
	"intelliwatt/internal/observability/metrics"
)

// IntervalStore persists canonical intervals.
type IntervalStore interface {
	UpsertIntervals(ctx context.Context, intervals []meterdata.CanonicalInterval) error
}

// IngestResult summarizes a single ingest run.
type IngestResult struct {
	Source   meterdata.Source
	Accepted int
	Dropped  map[meterdata.DropReason]int
	Groups   int
}

// IngestApplicationService turns raw reading payloads into persisted intervals.
type IngestApplicationService struct {
	store  IntervalStore
	cal    *calendar.Resolver
	policy calendar.AmbiguousPolicy
	logger *log.Logger
}

// NewIngestApplicationService constructs the service. An empty policy
// defaults to the earlier instant for fall-back wall clocks.
func NewIngestApplicationService(store IntervalStore, cal *calendar.Resolver, policy calendar.AmbiguousPolicy, logger *log.Logger) (*IngestApplicationService, error) {
	if store == nil {
		return nil, errors.New("ingest app service: nil interval store")
	}
	if cal == nil {
		return nil, errors.New("ingest app service: nil calendar resolver")
	}
	if policy == "" {
		policy = calendar.PolicyEarlier
	}
	if logger == nil {
		logger = log.Default()
	}

	return &IngestApplicationService{store: store, cal: cal, policy: policy, logger: logger}, nil
}

// IngestSMTCSV reads a Smart Meter Texas CSV payload and stores the intervals.
func (s *IngestApplicationService) IngestSMTCSV(ctx context.Context, r io.Reader) (IngestResult, error) {
	started := time.Now()
	parsed, err := formats.ReadSMTCSV(r, s.cal, s.policy)
	if err != nil {
		metrics.ObserveIngest(string(meterdata.SourceSMT), 0, nil, err, time.Since(started))
		return IngestResult{}, err
	}
	return s.ingest(ctx, meterdata.SourceSMT, parsed.Readings, started)
}

// IngestGreenButtonXML reads a Green Button feed payload and stores the intervals.
func (s *IngestApplicationService) IngestGreenButtonXML(ctx context.Context, r io.Reader, esiid, meter string) (IngestResult, error) {
	started := time.Now()
	readings, err := formats.ReadGreenButtonXML(r, esiid, meter)
	if err != nil {
		metrics.ObserveIngest(string(meterdata.SourceGreenButton), 0, nil, err, time.Since(started))
		return IngestResult{}, err
	}
	return s.ingest(ctx, meterdata.SourceGreenButton, readings.Readings, started)
}

// IngestSimulated stores intervals already on the canonical grid, such as
// simulator output.
func (s *IngestApplicationService) IngestSimulated(ctx context.Context, intervals []meterdata.CanonicalInterval) (IngestResult, error) {
	started := time.Now()
	if err := s.store.UpsertIntervals(ctx, intervals); err != nil {
		metrics.ObserveIngest(string(meterdata.SourceManual), 0, nil, err, time.Since(started))
		return IngestResult{}, err
	}
	metrics.ObserveIngest(string(meterdata.SourceManual), len(intervals), nil, nil, time.Since(started))
	s.logger.Printf("ingest: source=%s accepted=%d elapsed=%s",
		meterdata.SourceManual, len(intervals), time.Since(started).Round(time.Millisecond))
	return IngestResult{Source: meterdata.SourceManual, Accepted: len(intervals), Groups: 1}, nil
}

// IngestReadings normalizes and stores pre-parsed raw readings.
func (s *IngestApplicationService) IngestReadings(ctx context.Context, source meterdata.Source, readings []meterdata.RawReading) (IngestResult, error) {
	return s.ingest(ctx, source, readings, time.Now())
}

func (s *IngestApplicationService) ingest(ctx context.Context, source meterdata.Source, readings []meterdata.RawReading, started time.Time) (IngestResult, error) {
	normalized := meterdata.Normalize(readings)

	for _, group := range sortedGroupKeys(normalized.Groups) {
		if err := s.store.UpsertIntervals(ctx, normalized.Groups[group]); err != nil {
			metrics.ObserveIngest(string(source), 0, nil, err, time.Since(started))
			return IngestResult{}, err
		}
	}

	dropped := make(map[string]int, len(normalized.Dropped))
	for reason, count := range normalized.Dropped {
		dropped[string(reason)] = count
	}
	metrics.ObserveIngest(string(source), normalized.Accepted, dropped, nil, time.Since(started))

	s.logger.Printf("ingest: source=%s accepted=%d dropped=%d groups=%d elapsed=%s",
		source, normalized.Accepted, normalized.DroppedTotal(), len(normalized.Groups), time.Since(started).Round(time.Millisecond))

	return IngestResult{
		Source:   source,
		Accepted: normalized.Accepted,
		Dropped:  normalized.Dropped,
		Groups:   len(normalized.Groups),
	}, nil
}

func sortedGroupKeys(groups map[meterdata.GroupKey][]meterdata.CanonicalInterval) []meterdata.GroupKey {
	keys := make([]meterdata.GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ESIID != keys[j].ESIID {
			return keys[i].ESIID < keys[j].ESIID
		}
		return keys[i].Meter < keys[j].Meter
	})
	return keys
}
