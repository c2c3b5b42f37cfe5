package analysis

import "testing"

func TestBucketKeyRoundTrip(t *testing.T) {
	keys := []BucketKey{
		"kwh.m.all.total",
		"kwh.m.weekday.total",
		"kwh.m.weekend.total",
		"kwh.m.all.0700-2000",
		"kwh.m.all.2000-0700",
		"kwh.m.weekend.0000-2400",
	}
	for _, key := range keys {
		pk, err := ParseBucketKey(key)
		if err != nil {
			t.Errorf("%s: parse error %v", key, err)
			continue
		}
		if got := NewBucketKey(pk.DayType, pk.Window); got != key {
			t.Errorf("round trip %s -> %s", key, got)
		}
	}
}

func TestParseBucketKeyRejectsMalformed(t *testing.T) {
	bad := []BucketKey{
		"",
		"kwh.m.all",
		"kwh.m.someday.total",
		"kwh.m.all.700-2000",
		"kwh.m.all.0700-2960",
		"kwh.y.all.total",
		"kwh.m.all.07:00-20:00",
	}
	for _, key := range bad {
		if _, err := ParseBucketKey(key); err == nil {
			t.Errorf("expected parse error for %q", key)
		}
	}
}

func TestWindowContains(t *testing.T) {
	day := Window{Start: 7 * 60, End: 20 * 60}
	if !day.Contains(7 * 60) {
		t.Error("start minute should be inside")
	}
	if day.Contains(20 * 60) {
		t.Error("end minute should be outside (exclusive)")
	}
	if day.Contains(3 * 60) {
		t.Error("03:00 should be outside the day window")
	}

	night := Window{Start: 20 * 60, End: 7 * 60}
	if !night.Contains(23 * 60) {
		t.Error("23:00 should be inside the wrapping night window")
	}
	if !night.Contains(3 * 60) {
		t.Error("03:00 should be inside the wrapping night window")
	}
	if night.Contains(12 * 60) {
		t.Error("noon should be outside the wrapping night window")
	}

	total := Window{Total: true}
	if !total.Contains(0) || !total.Contains(1439) {
		t.Error("total window should contain every minute")
	}
}

func TestParsedKeyMatchesDayType(t *testing.T) {
	weekday, err := ParseBucketKey("kwh.m.weekday.total")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	weekend, err := ParseBucketKey("kwh.m.weekend.total")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if weekday.Matches(true, 600) {
		t.Error("weekday key should not match a weekend interval")
	}
	if !weekday.Matches(false, 600) {
		t.Error("weekday key should match a weekday interval")
	}
	if !weekend.Matches(true, 600) {
		t.Error("weekend key should match a weekend interval")
	}
}
