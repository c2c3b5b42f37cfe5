package pricing

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	analysis "intelliwatt/internal/analysis/domain"
	rates "intelliwatt/internal/rates/domain"
)

// fixedFeeTolerance is half a cent: breakdown drift beyond this triggers
// the sanity correction.
const fixedFeeTolerance = 0.005

// EstimateInput carries everything the calculator needs, already fetched:
// the calculator itself does no I/O.
type EstimateInput struct {
	AnnualKwh   float64
	MonthsCount int
	Rate        rates.RateStructure
	Usage       analysis.MonthlyBucketTotals
	Tdsp        *rates.DeliveryRates
}

// Estimate computes an auditable plan-cost estimate.
//
// Flat structures price annual kWh directly. Tiered structures walk the
// tier boundaries against each month's total independently (tiers reset
// monthly). TOU structures price each month's required buckets at the
// period selected by the interpreter's tie-break rule. Delivery charges
// are itemized separately. Dollar amounts round to cents only at output
// boundaries; per-bucket arithmetic keeps full float precision.
//
// If any required bucket is absent for any month the result is
// NOT_COMPUTABLE naming the missing keys, never a zero-filled guess.
func Estimate(in EstimateInput) CostEstimate {
	var notes []string

	if in.MonthsCount <= 0 {
		return notComputable(append(notes, "months count must be positive"))
	}
	if in.AnnualKwh < 0 {
		return notComputable(append(notes, "annual kwh must be non-negative"))
	}
	if in.Tdsp == nil {
		return notComputable(append(notes, "tdsp delivery rates unavailable"))
	}
	if in.Tdsp.PerKwhCents < 0 || in.Tdsp.MonthlyDollars < 0 {
		return notComputable(append(notes, "tdsp delivery rates malformed"))
	}

	required, warnings := rates.RequiredBuckets(in.Rate)
	notes = append(notes, warnings...)

	// Validate the shape that will actually price: a combined structure
	// degrades to tier-only, so its ignored TOU periods are not checked.
	checked := in.Rate
	if checked.Combined() {
		checked.Kind = rates.KindTiered
		checked.Periods = nil
	}
	if err := rates.Validate(checked); err != nil {
		return notComputable(append(notes, "invalid rate structure: "+err.Error()))
	}

	if in.Rate.Kind != rates.KindFlat && len(in.Usage) == 0 {
		return notComputable(append(notes, "no usage months supplied"))
	}

	supplier, missing, priceable := supplierEnergyCost(in, required)
	if len(missing) > 0 {
		for _, key := range missing {
			notes = append(notes, "missing required bucket: "+key)
		}
		return notComputable(notes)
	}
	if !priceable {
		notes = append(notes, fmt.Sprintf("rate kind %q cannot be priced", in.Rate.Kind))
		return notComputable(notes)
	}

	delivery := in.Tdsp.PerKwhCents * in.AnnualKwh / 100
	fixed := in.Tdsp.MonthlyDollars * float64(in.MonthsCount)

	breakdown := Breakdown{
		SupplierEnergy: round2(supplier),
		TdspDelivery:   round2(delivery),
		TdspFixed:      round2(fixed),
	}
	annual := round2(supplier + delivery + fixed)

	est := CostEstimate{
		Status:             StatusOK,
		AnnualCostDollars:  annual,
		MonthlyCostDollars: round2(annual / float64(in.MonthsCount)),
		Components:         breakdown,
		ComponentsV2:       breakdown,
		Notes:              notes,
	}
	if in.AnnualKwh > 0 {
		est.EffectiveCentsPerKwh = round2(annual * 100 / in.AnnualKwh)
	}

	SanityCorrectFixedFee(&est, in.Tdsp.MonthlyDollars, in.MonthsCount)
	return est
}

// supplierEnergyCost computes the energy component in dollars at full
// precision. It returns the sorted list of missing bucket references when
// required usage is absent, and priceable=false for shapes that carry no
// price at all.
func supplierEnergyCost(in EstimateInput, required []analysis.BucketKey) (cost float64, missing []string, priceable bool) {
	// A structure carrying both shapes degrades to tier-only pricing;
	// RequiredBuckets already flagged it.
	kind := in.Rate.Kind
	if in.Rate.Combined() {
		kind = rates.KindTiered
	}

	switch kind {
	case rates.KindFlat:
		return in.AnnualKwh * in.Rate.CentsPerKwh / 100, nil, true

	case rates.KindTiered:
		for _, monthKey := range sortedMonths(in.Usage) {
			monthKwh, ok := in.Usage.Get(monthKey, analysis.TotalKey)
			if !ok {
				missing = append(missing, monthKey+" "+string(analysis.TotalKey))
				continue
			}
			cost += tierCost(in.Rate.Tiers, monthKwh)
		}
		return cost, missing, true

	case rates.KindTimeOfUse:
		for _, monthKey := range sortedMonths(in.Usage) {
			month := civilMonthNumber(monthKey)
			for _, key := range required {
				kwh, ok := in.Usage.Get(monthKey, key)
				if !ok {
					missing = append(missing, monthKey+" "+string(key))
					continue
				}
				period, found := rates.PeriodFor(in.Rate, key, month)
				if !found {
					missing = append(missing, monthKey+" "+string(key))
					continue
				}
				cost += kwh * period.CentsPerKwh / 100
			}
		}
		return cost, missing, true

	default:
		return 0, nil, false
	}
}

// tierCost walks the tier boundaries against one month's total kWh.
// UptoKwh values are cumulative ceilings; a zero ceiling is unbounded.
func tierCost(tiers []rates.Tier, monthKwh float64) float64 {
	remaining := monthKwh
	prevCeiling := 0.0
	cost := 0.0
	lastCents := 0.0

	for _, tier := range tiers {
		lastCents = tier.CentsPerKwh
		width := math.Inf(1)
		if tier.UptoKwh > 0 && !math.IsInf(tier.UptoKwh, 1) {
			width = tier.UptoKwh - prevCeiling
			prevCeiling = tier.UptoKwh
		}
		if width <= 0 {
			continue
		}
		take := math.Min(remaining, width)
		if take <= 0 {
			return cost
		}
		cost += take * tier.CentsPerKwh / 100
		remaining -= take
	}
	if remaining > 0 {
		// Tiers exhausted without an unbounded step: the last declared
		// rate extends upward.
		cost += remaining * lastCents / 100
	}
	return cost
}

// SanityCorrectFixedFee repairs an estimate whose TDSP fixed-fee line
// disagrees with monthlyDollars x monthsCount by more than half a cent.
// Both breakdown shapes and the grand total are patched consistently and
// an audit note is appended. Upstream composition can omit the fixed fee
// independently; correcting here keeps disclosed totals consistent.
// Returns true when a correction was applied.
func SanityCorrectFixedFee(est *CostEstimate, monthlyDollars float64, monthsCount int) bool {
	if est == nil || est.Status != StatusOK || monthsCount <= 0 {
		return false
	}
	expected := round2(monthlyDollars * float64(monthsCount))
	if math.Abs(est.ComponentsV2.TdspFixed-expected) <= fixedFeeTolerance &&
		math.Abs(est.Components.TdspFixed-expected) <= fixedFeeTolerance {
		return false
	}

	delta := expected - est.ComponentsV2.TdspFixed
	est.ComponentsV2.TdspFixed = expected
	est.Components.TdspFixed = expected
	est.AnnualCostDollars = round2(est.AnnualCostDollars + delta)
	est.MonthlyCostDollars = round2(est.AnnualCostDollars / float64(monthsCount))
	est.Notes = append(est.Notes, fmt.Sprintf(
		"corrected tdsp fixed-fee component to %s and repriced totals", dollars(expected)))
	return true
}

func notComputable(notes []string) CostEstimate {
	return CostEstimate{Status: StatusNotComputable, Notes: notes}
}

func sortedMonths(usage analysis.MonthlyBucketTotals) []string {
	months := make([]string, 0, len(usage))
	for monthKey := range usage {
		months = append(months, monthKey)
	}
	sort.Strings(months)
	return months
}

// civilMonthNumber extracts the 1..12 month from a YYYY-MM key; zero for
// malformed keys, which no TOU period ever matches explicitly.
func civilMonthNumber(monthKey string) int {
	idx := strings.IndexByte(monthKey, '-')
	if idx < 0 || idx+1 >= len(monthKey) {
		return 0
	}
	month, err := strconv.Atoi(monthKey[idx+1:])
	if err != nil || month < 1 || month > 12 {
		return 0
	}
	return month
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func dollars(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}
