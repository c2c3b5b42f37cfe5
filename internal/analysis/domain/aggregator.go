package analysis

import (
	"errors"
	"sort"

	"intelliwatt/internal/calendar"
	meterdata "intelliwatt/internal/meterdata/domain"
)

// MonthlyBucketTotals maps a civil YYYY-MM month key to summed kWh per
// bucket key for that month.
type MonthlyBucketTotals map[string]map[BucketKey]float64

// Get returns the total for a month and bucket, reporting presence.
func (m MonthlyBucketTotals) Get(monthKey string, key BucketKey) (float64, bool) {
	buckets, ok := m[monthKey]
	if !ok {
		return 0, false
	}
	kwh, ok := buckets[key]
	return kwh, ok
}

// DateRange is an inclusive civil-date range, both ends YYYY-MM-DD.
type DateRange struct {
	Start string
	End   string
}

func (r DateRange) contains(dateKey string) bool {
	return r.Start <= dateKey && dateKey <= r.End
}

// AggregateOptions controls interval exclusion. Excluded civil dates and
// travel/vacancy ranges drop the whole interval from every bucket, used to
// remove vacation periods from usage baselines.
type AggregateOptions struct {
	ExcludeDateKeys map[string]bool
	TravelRanges    []DateRange
}

var (
	ErrNilResolver = errors.New("analysis: nil calendar resolver")
	ErrNoMonths    = errors.New("analysis: empty month window")
	ErrNoBuckets   = errors.New("analysis: no bucket keys requested")
)

// Aggregate accumulates interval kWh into every requested bucket key for
// every requested civil month. Every (month, key) cell is present in the
// result even when its total is zero, so downstream pricing can distinguish
// "no usage" from "bucket never computed".
//
// Intervals are summed in chronological order so repeated runs over the
// same input are bit-identical.
func Aggregate(
	cal *calendar.Resolver,
	intervals []meterdata.CanonicalInterval,
	months []string,
	required []BucketKey,
	opts AggregateOptions,
) (MonthlyBucketTotals, error) {
	if cal == nil {
		return nil, ErrNilResolver
	}
	if len(months) == 0 {
		return nil, ErrNoMonths
	}
	if len(required) == 0 {
		return nil, ErrNoBuckets
	}

	parsed := make([]ParsedKey, 0, len(required))
	seen := make(map[BucketKey]bool, len(required))
	for _, key := range required {
		if seen[key] {
			continue
		}
		seen[key] = true
		pk, err := ParseBucketKey(key)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, pk)
	}

	totals := make(MonthlyBucketTotals, len(months))
	monthSet := make(map[string]bool, len(months))
	for _, monthKey := range months {
		monthSet[monthKey] = true
		buckets := make(map[BucketKey]float64, len(parsed))
		for _, pk := range parsed {
			buckets[pk.Key] = 0
		}
		totals[monthKey] = buckets
	}

	ordered := make([]meterdata.CanonicalInterval, len(intervals))
	copy(ordered, intervals)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TS.Before(ordered[j].TS)
	})

	for _, ci := range ordered {
		monthKey := cal.MonthKey(ci.TS)
		if !monthSet[monthKey] {
			continue
		}
		dateKey := cal.DateKey(ci.TS)
		if opts.ExcludeDateKeys[dateKey] || inTravel(dateKey, opts.TravelRanges) {
			continue
		}

		weekend := cal.IsWeekend(ci.TS)
		minute := cal.MinuteOfDay(ci.TS)
		buckets := totals[monthKey]
		for _, pk := range parsed {
			if pk.Matches(weekend, minute) {
				buckets[pk.Key] += ci.KWh
			}
		}
	}
	return totals, nil
}

func inTravel(dateKey string, ranges []DateRange) bool {
	for _, r := range ranges {
		if r.contains(dateKey) {
			return true
		}
	}
	return false
}
