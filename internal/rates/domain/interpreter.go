package rates

import (
	"fmt"

	analysis "intelliwatt/internal/analysis/domain"
)

// Combined reports whether a structure carries both tier and TOU shapes.
// Blended tier+TOU pricing is not supported anywhere in the pipeline.
func (rs RateStructure) Combined() bool {
	return len(rs.Tiers) > 0 && len(rs.Periods) > 0
}

// BucketKeyForPeriod derives the canonical bucket key a TOU period prices
// against. Seasonal variants of the same window map to the same key; month
// selection happens at pricing time via PeriodFor.
func BucketKeyForPeriod(p TouPeriod) (analysis.BucketKey, error) {
	dayType := p.DayType
	if dayType == "" {
		dayType = analysis.DayTypeAll
	}
	if !dayType.IsValid() {
		return "", analysis.ErrBadBucketKey
	}

	if p.StartHHMM == "" && p.EndHHMM == "" {
		return analysis.NewBucketKey(dayType, analysis.Window{Total: true}), nil
	}
	window, err := analysis.ParseWindow(p.StartHHMM + "-" + p.EndHHMM)
	if err != nil {
		return "", err
	}
	return analysis.NewBucketKey(dayType, window), nil
}

// RequiredBuckets returns the bucket keys the aggregator must materialize
// to price the structure, plus warnings for degraded shapes.
//
// Flat and Tiered price against the monthly total only: tier boundaries
// apply to total kWh regardless of time of day. TOU requires the minimal
// deduplicated key set spanned by its periods, in declaration order. A
// combined tier+TOU structure degrades to the tier-only requirement with a
// warning; an unrecognized kind degrades the same way so callers get a
// priceable-but-flagged result instead of a crash.
func RequiredBuckets(rs RateStructure) ([]analysis.BucketKey, []string) {
	var warnings []string

	if rs.Combined() {
		warnings = append(warnings,
			"combined tier+tou structure is unsupported; pricing tiers against monthly totals and ignoring tou windows")
		return []analysis.BucketKey{analysis.TotalKey}, warnings
	}

	switch rs.Kind {
	case KindFlat, KindTiered:
		return []analysis.BucketKey{analysis.TotalKey}, warnings
	case KindTimeOfUse:
		var keys []analysis.BucketKey
		seen := make(map[analysis.BucketKey]bool)
		for _, p := range rs.Periods {
			key, err := BucketKeyForPeriod(p)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("skipping unparseable tou period %s-%s", p.StartHHMM, p.EndHHMM))
				continue
			}
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
		if len(keys) == 0 {
			warnings = append(warnings, "tou structure has no usable periods; falling back to monthly total")
			keys = []analysis.BucketKey{analysis.TotalKey}
		}
		return keys, warnings
	default:
		warnings = append(warnings,
			fmt.Sprintf("unrecognized rate kind %q; falling back to monthly total", rs.Kind))
		return []analysis.BucketKey{analysis.TotalKey}, warnings
	}
}

// PeriodFor selects the TOU period pricing a bucket key in a civil month.
// Tie-break order, stable across runs:
//  1. a period whose explicit months list contains the month,
//  2. a period with no months list (all-months catch-all),
//  3. the first declared period for the key.
func PeriodFor(rs RateStructure, key analysis.BucketKey, month int) (TouPeriod, bool) {
	var catchAll *TouPeriod
	var first *TouPeriod

	for i := range rs.Periods {
		p := rs.Periods[i]
		pkey, err := BucketKeyForPeriod(p)
		if err != nil || pkey != key {
			continue
		}
		if first == nil {
			first = &rs.Periods[i]
		}
		if len(p.Months) == 0 {
			if catchAll == nil {
				catchAll = &rs.Periods[i]
			}
			continue
		}
		if p.InMonth(month) {
			return p, true
		}
	}
	if catchAll != nil {
		return *catchAll, true
	}
	if first != nil {
		return *first, true
	}
	return TouPeriod{}, false
}

// Validate checks structural invariants: tiered structures need at least
// one tier with non-negative rates, and TOU periods sharing a bucket key
// must not overlap within any month.
func Validate(rs RateStructure) error {
	switch rs.Kind {
	case KindFlat:
		if rs.CentsPerKwh < 0 {
			return ErrNegativeRate
		}
	case KindTiered:
		if len(rs.Tiers) == 0 {
			return ErrNoTiers
		}
		for _, tier := range rs.Tiers {
			if tier.CentsPerKwh < 0 {
				return ErrNegativeRate
			}
		}
	case KindTimeOfUse:
		if len(rs.Periods) == 0 {
			return ErrNoPeriods
		}
		for _, p := range rs.Periods {
			if p.CentsPerKwh < 0 {
				return ErrNegativeRate
			}
		}
		if err := checkSeasonalOverlap(rs); err != nil {
			return err
		}
	}
	return nil
}

func checkSeasonalOverlap(rs RateStructure) error {
	byKey := make(map[analysis.BucketKey][]TouPeriod)
	for _, p := range rs.Periods {
		key, err := BucketKeyForPeriod(p)
		if err != nil {
			continue
		}
		byKey[key] = append(byKey[key], p)
	}
	for _, periods := range byKey {
		for month := 1; month <= 12; month++ {
			explicit := 0
			for _, p := range periods {
				if len(p.Months) > 0 && p.InMonth(month) {
					explicit++
				}
			}
			if explicit > 1 {
				return ErrOverlap
			}
		}
	}
	return nil
}
