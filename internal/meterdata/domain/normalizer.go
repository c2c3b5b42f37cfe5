package meterdata

import (
	"math"
	"sort"
	"time"
)

// SlotWidth is the canonical interval width on the UTC grid.
const SlotWidth = 15 * time.Minute

// DropReason classifies why a raw reading was rejected. Rejection is
// row-level: one bad row never aborts the batch.
type DropReason string

const (
	DropMissingIdentity  DropReason = "missing_identity"
	DropMissingTimestamp DropReason = "missing_timestamp"
	DropBadQuantity      DropReason = "bad_quantity"
	DropBadRange         DropReason = "bad_range"
)

// NormalizeResult carries the canonical slots per meter stream plus
// row-level accounting for the batch.
type NormalizeResult struct {
	Groups   map[GroupKey][]CanonicalInterval
	Accepted int
	Dropped  map[DropReason]int
}

// DroppedTotal sums drops across all reasons.
func (r NormalizeResult) DroppedTotal() int {
	total := 0
	for _, n := range r.Dropped {
		total += n
	}
	return total
}

// Normalize aligns a heterogeneous batch of raw readings onto the canonical
// 15-minute UTC-start grid.
//
// Slot assignment:
//   - End only: the reading is the slot whose UTC end equals End (implicit
//     15-minute width). An off-grid End selects the slot containing it.
//   - Start+End (or Start+Duration): a span covering exactly one slot is
//     assigned directly; a span crossing slots is split across the covered
//     slots proportionally to the time each slot overlaps the span.
//
// When two rows land on the same (esiid, meter, ts) the later row in the
// batch wins outright. Re-running the same batch therefore yields the same
// slots with the same values.
func Normalize(readings []RawReading) NormalizeResult {
	result := NormalizeResult{
		Groups:  make(map[GroupKey][]CanonicalInterval),
		Dropped: make(map[DropReason]int),
	}

	merged := make(map[GroupKey]map[time.Time]CanonicalInterval)

	for _, row := range readings {
		if row.ESIID == "" || row.Meter == "" {
			result.Dropped[DropMissingIdentity]++
			continue
		}
		if math.IsNaN(row.KWh) || math.IsInf(row.KWh, 0) {
			result.Dropped[DropBadQuantity]++
			continue
		}

		slots, reason := assignSlots(row)
		if reason != "" {
			result.Dropped[reason]++
			continue
		}

		key := GroupKey{ESIID: row.ESIID, Meter: row.Meter}
		group := merged[key]
		if group == nil {
			group = make(map[time.Time]CanonicalInterval)
			merged[key] = group
		}
		for _, slot := range slots {
			group[slot.TS] = CanonicalInterval{
				ESIID:  row.ESIID,
				Meter:  row.Meter,
				TS:     slot.TS,
				KWh:    slot.KWh,
				Source: row.Source,
			}
		}
		result.Accepted++
	}

	for key, group := range merged {
		intervals := make([]CanonicalInterval, 0, len(group))
		for _, ci := range group {
			intervals = append(intervals, ci)
		}
		sort.Slice(intervals, func(i, j int) bool {
			return intervals[i].TS.Before(intervals[j].TS)
		})
		result.Groups[key] = intervals
	}
	return result
}

type slotShare struct {
	TS  time.Time
	KWh float64
}

func assignSlots(row RawReading) ([]slotShare, DropReason) {
	start, end, ok := resolveSpan(row)
	if !ok {
		return nil, DropMissingTimestamp
	}
	if !end.After(start) {
		return nil, DropBadRange
	}

	first := start.Truncate(SlotWidth)
	span := end.Sub(start)

	// Fast path: the span sits inside a single slot.
	if !end.After(first.Add(SlotWidth)) {
		return []slotShare{{TS: first, KWh: row.KWh}}, ""
	}

	var shares []slotShare
	for cursor := first; cursor.Before(end); cursor = cursor.Add(SlotWidth) {
		overlapStart := maxTime(cursor, start)
		overlapEnd := minTime(cursor.Add(SlotWidth), end)
		overlap := overlapEnd.Sub(overlapStart)
		if overlap <= 0 {
			continue
		}
		shares = append(shares, slotShare{
			TS:  cursor,
			KWh: row.KWh * float64(overlap) / float64(span),
		})
	}
	return shares, ""
}

func resolveSpan(row RawReading) (time.Time, time.Time, bool) {
	switch {
	case row.Start != nil && row.End != nil:
		return row.Start.UTC(), row.End.UTC(), true
	case row.Start != nil && row.Duration > 0:
		start := row.Start.UTC()
		return start, start.Add(row.Duration), true
	case row.End != nil:
		end := row.End.UTC()
		slotStart := end.Truncate(SlotWidth)
		if slotStart.Equal(end) {
			slotStart = end.Add(-SlotWidth)
		}
		return slotStart, slotStart.Add(SlotWidth), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
