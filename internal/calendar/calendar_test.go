package calendar

import (
	"testing"
	"time"
)

func mustResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver("America/Chicago")
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return r
}

func TestExpectedIntervalsForDay(t *testing.T) {
	r := mustResolver(t)

	cases := []struct {
		name string
		date time.Time
		want int
	}{
		{"spring forward", time.Date(2024, 3, 10, 12, 0, 0, 0, r.Location()), 92},
		{"fall back", time.Date(2024, 11, 3, 12, 0, 0, 0, r.Location()), 100},
		{"ordinary day", time.Date(2024, 7, 15, 12, 0, 0, 0, r.Location()), 96},
		{"day before spring forward", time.Date(2024, 3, 9, 12, 0, 0, 0, r.Location()), 96},
		{"day after fall back", time.Date(2024, 11, 4, 12, 0, 0, 0, r.Location()), 96},
	}
	for _, tc := range cases {
		if got := r.ExpectedIntervalsForDay(tc.date); got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestLocalToUTCNormalTime(t *testing.T) {
	r := mustResolver(t)

	got, ok := r.LocalToUTC("2024-07-15 14:30:00", PolicyEarlier)
	if !ok {
		t.Fatal("expected ok")
	}
	// CDT is UTC-5.
	want := time.Date(2024, 7, 15, 19, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLocalToUTCSpringForwardGap(t *testing.T) {
	r := mustResolver(t)

	// 02:30 does not exist on 2024-03-10 in Chicago; snaps to 03:00 CDT.
	got, ok := r.LocalToUTC("2024-03-10 02:30:00", PolicyEarlier)
	if !ok {
		t.Fatal("expected ok")
	}
	want := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLocalToUTCFallBackAmbiguity(t *testing.T) {
	r := mustResolver(t)

	// 01:30 occurs twice on 2024-11-03: first at 06:30 UTC (CDT), again at
	// 07:30 UTC (CST).
	earlier, ok := r.LocalToUTC("2024-11-03 01:30:00", PolicyEarlier)
	if !ok {
		t.Fatal("expected ok for earlier")
	}
	later, ok := r.LocalToUTC("2024-11-03 01:30:00", PolicyLater)
	if !ok {
		t.Fatal("expected ok for later")
	}

	wantEarlier := time.Date(2024, 11, 3, 6, 30, 0, 0, time.UTC)
	wantLater := time.Date(2024, 11, 3, 7, 30, 0, 0, time.UTC)
	if !earlier.Equal(wantEarlier) {
		t.Errorf("earlier: got %v, want %v", earlier, wantEarlier)
	}
	if !later.Equal(wantLater) {
		t.Errorf("later: got %v, want %v", later, wantLater)
	}
}

func TestLocalToUTCUnparseable(t *testing.T) {
	r := mustResolver(t)

	if _, ok := r.LocalToUTC("not-a-timestamp", PolicyEarlier); ok {
		t.Error("expected ok=false for garbage input")
	}
	if _, ok := r.LocalToUTC("", PolicyEarlier); ok {
		t.Error("expected ok=false for empty input")
	}
}

func TestMonthBounds(t *testing.T) {
	r := mustResolver(t)

	start, end, ok := r.MonthBounds("2024-07")
	if !ok {
		t.Fatal("expected ok")
	}
	// July 2024 in Chicago is CDT (UTC-5).
	if want := time.Date(2024, 7, 1, 5, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start: got %v, want %v", start, want)
	}
	if want := time.Date(2024, 8, 1, 5, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end: got %v, want %v", end, want)
	}

	if _, _, ok := r.MonthBounds("garbage"); ok {
		t.Error("expected ok=false for malformed key")
	}
}

func TestMonthKeys(t *testing.T) {
	r := mustResolver(t)

	keys := r.MonthKeys(time.Date(2024, 11, 15, 0, 0, 0, 0, r.Location()), 3)
	want := []string{"2024-11", "2024-12", "2025-01"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: got %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestIsWeekend(t *testing.T) {
	r := mustResolver(t)

	// 05:00 UTC on the 13th is 00:00 CDT on Saturday the 13th.
	sat := time.Date(2024, 7, 13, 5, 0, 0, 0, time.UTC)
	if !r.IsWeekend(sat) {
		t.Error("expected Saturday to be weekend")
	}
	// 04:00 UTC on the 13th is 23:00 CDT on Friday the 12th.
	fri := time.Date(2024, 7, 13, 4, 0, 0, 0, time.UTC)
	if r.IsWeekend(fri) {
		t.Error("expected Friday evening to be a weekday")
	}
}
