package application

import (
	"context"
	"testing"
	"time"

	analysis "intelliwatt/internal/analysis/domain"
	"intelliwatt/internal/calendar"
	meterdata "intelliwatt/internal/meterdata/domain"
)

type stubReader struct {
	intervals []meterdata.CanonicalInterval
	gotFrom   time.Time
	gotTo     time.Time
}

func (s *stubReader) ListRange(_ context.Context, _, _ string, from, to time.Time) ([]meterdata.CanonicalInterval, error) {
	s.gotFrom = from
	s.gotTo = to
	return s.intervals, nil
}

func newTestResolver(t *testing.T) *calendar.Resolver {
	t.Helper()
	cal, err := calendar.NewResolver(calendar.DefaultZone)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return cal
}

func TestComputeBuckets_QuerySpansCivilMonths(t *testing.T) {
	cal := newTestResolver(t)
	// One slot inside July, civil time.
	ts := time.Date(2024, time.July, 15, 5, 15, 0, 0, time.UTC)
	reader := &stubReader{intervals: []meterdata.CanonicalInterval{
		{ESIID: "1044372000000000001", Meter: "1", TS: ts, KWh: 1.5, Source: meterdata.SourceSMT},
	}}

	svc, err := NewUsageApplicationService(reader, cal)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	totals, counts, err := svc.ComputeBuckets(context.Background(), UsageWindow{
		ESIID:  "1044372000000000001",
		Meter:  "1",
		Months: []string{"2024-06", "2024-07"},
	}, []analysis.BucketKey{analysis.TotalKey}, analysis.AggregateOptions{})
	if err != nil {
		t.Fatalf("compute buckets: %v", err)
	}

	// June 1 00:00 CDT and August 1 00:00 CDT, in UTC.
	wantFrom := time.Date(2024, time.June, 1, 5, 0, 0, 0, time.UTC)
	wantTo := time.Date(2024, time.August, 1, 5, 0, 0, 0, time.UTC)
	if !reader.gotFrom.Equal(wantFrom) {
		t.Errorf("query from: got %s want %s", reader.gotFrom, wantFrom)
	}
	if !reader.gotTo.Equal(wantTo) {
		t.Errorf("query to: got %s want %s", reader.gotTo, wantTo)
	}

	july, ok := totals.Get("2024-07", analysis.TotalKey)
	if !ok || july != 1.5 {
		t.Errorf("july total: got %v ok=%v", july, ok)
	}
	june, ok := totals.Get("2024-06", analysis.TotalKey)
	if !ok || june != 0 {
		t.Errorf("june total should be materialized at zero: got %v ok=%v", june, ok)
	}

	// July had one stored reading behind its total; June had none, which
	// tells an empty month apart from a genuinely zero-usage one.
	if counts["2024-07"] != 1 {
		t.Errorf("july interval count: got %d want 1", counts["2024-07"])
	}
	if count, ok := counts["2024-06"]; !ok || count != 0 {
		t.Errorf("june interval count: got %d ok=%v, want materialized zero", count, ok)
	}
}

func TestComputeBuckets_Validation(t *testing.T) {
	cal := newTestResolver(t)
	reader := &stubReader{}
	svc, err := NewUsageApplicationService(reader, cal)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cases := []struct {
		name   string
		window UsageWindow
	}{
		{"empty esiid", UsageWindow{Meter: "1", Months: []string{"2024-01"}}},
		{"empty meter", UsageWindow{ESIID: "x", Months: []string{"2024-01"}}},
		{"no months", UsageWindow{ESIID: "x", Meter: "1"}},
		{"bad month key", UsageWindow{ESIID: "x", Meter: "1", Months: []string{"garbage"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := svc.ComputeBuckets(context.Background(), tc.window, []analysis.BucketKey{analysis.TotalKey}, analysis.AggregateOptions{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
