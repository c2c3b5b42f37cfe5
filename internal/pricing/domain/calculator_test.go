package pricing

import (
	"math"
	"strings"
	"testing"

	analysis "intelliwatt/internal/analysis/domain"
	rates "intelliwatt/internal/rates/domain"
)

func freeDelivery() *rates.DeliveryRates {
	return &rates.DeliveryRates{TdspCode: "oncor"}
}

func usageWithTotals(totals map[string]float64) analysis.MonthlyBucketTotals {
	usage := make(analysis.MonthlyBucketTotals, len(totals))
	for monthKey, kwh := range totals {
		usage[monthKey] = map[analysis.BucketKey]float64{analysis.TotalKey: kwh}
	}
	return usage
}

func TestEstimateFlat(t *testing.T) {
	est := Estimate(EstimateInput{
		AnnualKwh:   12000,
		MonthsCount: 12,
		Rate:        rates.RateStructure{Kind: rates.KindFlat, CentsPerKwh: 12.5},
		Usage:       usageWithTotals(map[string]float64{"2024-01": 1000}),
		Tdsp:        &rates.DeliveryRates{TdspCode: "oncor", PerKwhCents: 4.0, MonthlyDollars: 4.23},
	})

	if est.Status != StatusOK {
		t.Fatalf("status = %s, notes = %v", est.Status, est.Notes)
	}
	if est.ComponentsV2.SupplierEnergy != 1500.00 {
		t.Errorf("supplier = %v, want 1500.00", est.ComponentsV2.SupplierEnergy)
	}
	if est.ComponentsV2.TdspDelivery != 480.00 {
		t.Errorf("delivery = %v, want 480.00", est.ComponentsV2.TdspDelivery)
	}
	if est.ComponentsV2.TdspFixed != 50.76 {
		t.Errorf("fixed = %v, want 50.76", est.ComponentsV2.TdspFixed)
	}
	if want := 2030.76; est.AnnualCostDollars != want {
		t.Errorf("annual = %v, want %v", est.AnnualCostDollars, want)
	}
	if want := round2(2030.76 / 12); est.MonthlyCostDollars != want {
		t.Errorf("monthly = %v, want %v", est.MonthlyCostDollars, want)
	}
	if want := round2(2030.76 * 100 / 12000); est.EffectiveCentsPerKwh != want {
		t.Errorf("effective = %v, want %v", est.EffectiveCentsPerKwh, want)
	}
}

func TestEstimateTieredMonotonicity(t *testing.T) {
	rate := rates.RateStructure{Kind: rates.KindTiered, Tiers: []rates.Tier{
		{UptoKwh: 500, CentsPerKwh: 10},
		{CentsPerKwh: 15},
	}}

	low := Estimate(EstimateInput{
		AnnualKwh: 400, MonthsCount: 1, Rate: rate,
		Usage: usageWithTotals(map[string]float64{"2024-01": 400}),
		Tdsp:  freeDelivery(),
	})
	if low.Status != StatusOK || low.ComponentsV2.SupplierEnergy != 40.00 {
		t.Errorf("400 kWh month: supplier = %v (status %s), want 40.00",
			low.ComponentsV2.SupplierEnergy, low.Status)
	}

	high := Estimate(EstimateInput{
		AnnualKwh: 600, MonthsCount: 1, Rate: rate,
		Usage: usageWithTotals(map[string]float64{"2024-01": 600}),
		Tdsp:  freeDelivery(),
	})
	if high.Status != StatusOK || high.ComponentsV2.SupplierEnergy != 65.00 {
		t.Errorf("600 kWh month: supplier = %v (status %s), want 65.00",
			high.ComponentsV2.SupplierEnergy, high.Status)
	}
}

func TestEstimateTiersResetMonthly(t *testing.T) {
	rate := rates.RateStructure{Kind: rates.KindTiered, Tiers: []rates.Tier{
		{UptoKwh: 500, CentsPerKwh: 10},
		{CentsPerKwh: 15},
	}}

	// Two 400 kWh months stay inside tier one; one 800 kWh month does not.
	est := Estimate(EstimateInput{
		AnnualKwh: 800, MonthsCount: 2, Rate: rate,
		Usage: usageWithTotals(map[string]float64{"2024-01": 400, "2024-02": 400}),
		Tdsp:  freeDelivery(),
	})
	if est.ComponentsV2.SupplierEnergy != 80.00 {
		t.Errorf("two 400 months: supplier = %v, want 80.00", est.ComponentsV2.SupplierEnergy)
	}

	single := Estimate(EstimateInput{
		AnnualKwh: 800, MonthsCount: 1, Rate: rate,
		Usage: usageWithTotals(map[string]float64{"2024-01": 800}),
		Tdsp:  freeDelivery(),
	})
	if single.ComponentsV2.SupplierEnergy != 95.00 {
		t.Errorf("one 800 month: supplier = %v, want 95.00", single.ComponentsV2.SupplierEnergy)
	}
}

func TestEstimateTOUSeasonalTieBreak(t *testing.T) {
	night := analysis.BucketKey("kwh.m.all.2000-0700")
	rate := rates.RateStructure{Kind: rates.KindTimeOfUse, Periods: []rates.TouPeriod{
		{StartHHMM: "2000", EndHHMM: "0700", Months: []int{6, 7, 8}, CentsPerKwh: 12},
		{StartHHMM: "2000", EndHHMM: "0700", CentsPerKwh: 10},
	}}

	usage := analysis.MonthlyBucketTotals{
		"2024-07": {night: 100},
		"2024-01": {night: 100},
	}
	est := Estimate(EstimateInput{
		AnnualKwh: 200, MonthsCount: 2, Rate: rate, Usage: usage, Tdsp: freeDelivery(),
	})
	if est.Status != StatusOK {
		t.Fatalf("status = %s, notes = %v", est.Status, est.Notes)
	}
	// July at 12c, January at the 10c catch-all.
	if want := round2(100*0.12 + 100*0.10); est.ComponentsV2.SupplierEnergy != want {
		t.Errorf("supplier = %v, want %v", est.ComponentsV2.SupplierEnergy, want)
	}
}

func TestEstimateFailsClosedOnMissingBucket(t *testing.T) {
	day := "kwh.m.all.0700-2000"
	rate := rates.RateStructure{Kind: rates.KindTimeOfUse, Periods: []rates.TouPeriod{
		{StartHHMM: "0700", EndHHMM: "2000", CentsPerKwh: 14},
	}}

	// Only the total bucket is supplied; the required day window is not.
	est := Estimate(EstimateInput{
		AnnualKwh: 1000, MonthsCount: 1, Rate: rate,
		Usage: usageWithTotals(map[string]float64{"2024-03": 1000}),
		Tdsp:  freeDelivery(),
	})
	if est.Status != StatusNotComputable {
		t.Fatalf("status = %s, want NOT_COMPUTABLE", est.Status)
	}
	found := false
	for _, note := range est.Notes {
		if strings.Contains(note, day) {
			found = true
		}
	}
	if !found {
		t.Errorf("notes %v should name the missing bucket %s", est.Notes, day)
	}
	if est.AnnualCostDollars != 0 {
		t.Errorf("not-computable estimate must not carry a dollar figure, got %v", est.AnnualCostDollars)
	}
}

func TestEstimateFailsClosedOnMissingTdsp(t *testing.T) {
	est := Estimate(EstimateInput{
		AnnualKwh: 1000, MonthsCount: 12,
		Rate:  rates.RateStructure{Kind: rates.KindFlat, CentsPerKwh: 10},
		Usage: usageWithTotals(map[string]float64{"2024-01": 1000}),
	})
	if est.Status != StatusNotComputable {
		t.Errorf("status = %s, want NOT_COMPUTABLE without tdsp rates", est.Status)
	}
}

func TestEstimateRejectsOverlappingSeasonalPeriods(t *testing.T) {
	// Both periods explicitly claim July for the same all-day window. The
	// structure is ambiguous: refuse it instead of pricing at whichever
	// period is declared first.
	rate := rates.RateStructure{Kind: rates.KindTimeOfUse, Periods: []rates.TouPeriod{
		{Months: []int{6, 7, 8}, CentsPerKwh: 12},
		{Months: []int{7}, CentsPerKwh: 20},
	}}
	est := Estimate(EstimateInput{
		AnnualKwh: 1000, MonthsCount: 1, Rate: rate,
		Usage: usageWithTotals(map[string]float64{"2024-07": 1000}),
		Tdsp:  freeDelivery(),
	})
	if est.Status != StatusNotComputable {
		t.Fatalf("status = %s, want NOT_COMPUTABLE for overlapping periods", est.Status)
	}
	found := false
	for _, note := range est.Notes {
		if strings.Contains(note, "invalid rate structure") {
			found = true
		}
	}
	if !found {
		t.Errorf("notes %v should flag the invalid structure", est.Notes)
	}
	if est.AnnualCostDollars != 0 {
		t.Errorf("refused estimate must not carry a dollar figure, got %v", est.AnnualCostDollars)
	}
}

func TestEstimateCombinedIgnoresOverlapInDroppedPeriods(t *testing.T) {
	// A combined structure prices tier-only; overlap among the TOU periods
	// it discards must not block the degraded pricing.
	rate := rates.RateStructure{
		Kind:  rates.KindTimeOfUse,
		Tiers: []rates.Tier{{CentsPerKwh: 10}},
		Periods: []rates.TouPeriod{
			{Months: []int{7}, CentsPerKwh: 12},
			{Months: []int{7}, CentsPerKwh: 20},
		},
	}
	est := Estimate(EstimateInput{
		AnnualKwh: 1000, MonthsCount: 1, Rate: rate,
		Usage: usageWithTotals(map[string]float64{"2024-07": 1000}),
		Tdsp:  freeDelivery(),
	})
	if est.Status != StatusOK {
		t.Fatalf("status = %s, notes = %v", est.Status, est.Notes)
	}
	if est.ComponentsV2.SupplierEnergy != 100.00 {
		t.Errorf("supplier = %v, want tier-only 100.00", est.ComponentsV2.SupplierEnergy)
	}
}

func TestEstimateCombinedDegradesToTierPricing(t *testing.T) {
	rate := rates.RateStructure{
		Kind:    rates.KindTimeOfUse,
		Tiers:   []rates.Tier{{UptoKwh: 500, CentsPerKwh: 10}, {CentsPerKwh: 15}},
		Periods: []rates.TouPeriod{{StartHHMM: "0700", EndHHMM: "2000", CentsPerKwh: 99}},
	}
	est := Estimate(EstimateInput{
		AnnualKwh: 600, MonthsCount: 1, Rate: rate,
		Usage: usageWithTotals(map[string]float64{"2024-01": 600}),
		Tdsp:  freeDelivery(),
	})
	if est.Status != StatusOK {
		t.Fatalf("status = %s, notes = %v", est.Status, est.Notes)
	}
	if est.ComponentsV2.SupplierEnergy != 65.00 {
		t.Errorf("supplier = %v, want tier-only 65.00", est.ComponentsV2.SupplierEnergy)
	}
	warned := false
	for _, note := range est.Notes {
		if strings.Contains(note, "unsupported") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("expected unsupported-shape warning in notes %v", est.Notes)
	}
}

func TestSanityCorrectFixedFee(t *testing.T) {
	est := CostEstimate{
		Status:             StatusOK,
		AnnualCostDollars:  1000.00,
		MonthlyCostDollars: round2(1000.00 / 12),
		Components:         Breakdown{SupplierEnergy: 900, TdspDelivery: 100},
		ComponentsV2:       Breakdown{SupplierEnergy: 900, TdspDelivery: 100},
	}

	// Upstream composition dropped the $4.23/month fixed fee entirely.
	if !SanityCorrectFixedFee(&est, 4.23, 12) {
		t.Fatal("expected a correction to be applied")
	}
	if est.ComponentsV2.TdspFixed != 50.76 || est.Components.TdspFixed != 50.76 {
		t.Errorf("fixed fee = v2 %v legacy %v, want both 50.76",
			est.ComponentsV2.TdspFixed, est.Components.TdspFixed)
	}
	if est.AnnualCostDollars != 1050.76 {
		t.Errorf("annual = %v, want 1050.76", est.AnnualCostDollars)
	}
	if want := round2(1050.76 / 12); est.MonthlyCostDollars != want {
		t.Errorf("monthly = %v, want %v", est.MonthlyCostDollars, want)
	}
	if len(est.Notes) == 0 || !strings.Contains(est.Notes[0], "corrected") {
		t.Errorf("expected an audit note, got %v", est.Notes)
	}

	// Consistent estimates are left alone.
	if SanityCorrectFixedFee(&est, 4.23, 12) {
		t.Error("second pass should be a no-op")
	}
}

func TestEstimateRoundingAtBoundariesOnly(t *testing.T) {
	// Many tiny buckets: per-bucket rounding would drift off by cents.
	night := analysis.BucketKey("kwh.m.all.2000-0700")
	rate := rates.RateStructure{Kind: rates.KindTimeOfUse, Periods: []rates.TouPeriod{
		{StartHHMM: "2000", EndHHMM: "0700", CentsPerKwh: 9.999},
	}}

	usage := analysis.MonthlyBucketTotals{}
	months := []string{"2024-01", "2024-02", "2024-03", "2024-04", "2024-05", "2024-06",
		"2024-07", "2024-08", "2024-09", "2024-10", "2024-11", "2024-12"}
	var totalKwh float64
	for _, monthKey := range months {
		usage[monthKey] = map[analysis.BucketKey]float64{night: 83.333}
		totalKwh += 83.333
	}

	est := Estimate(EstimateInput{
		AnnualKwh: totalKwh, MonthsCount: 12, Rate: rate, Usage: usage, Tdsp: freeDelivery(),
	})
	want := round2(totalKwh * 9.999 / 100)
	if math.Abs(est.ComponentsV2.SupplierEnergy-want) > 1e-9 {
		t.Errorf("supplier = %v, want %v (rounded once at the boundary)", est.ComponentsV2.SupplierEnergy, want)
	}
}

func TestEstimateInputValidation(t *testing.T) {
	base := EstimateInput{
		AnnualKwh: 100, MonthsCount: 12,
		Rate:  rates.RateStructure{Kind: rates.KindFlat, CentsPerKwh: 10},
		Usage: usageWithTotals(map[string]float64{"2024-01": 100}),
		Tdsp:  freeDelivery(),
	}

	bad := base
	bad.MonthsCount = 0
	if est := Estimate(bad); est.Status != StatusNotComputable {
		t.Error("zero months should not be computable")
	}

	bad = base
	bad.AnnualKwh = -1
	if est := Estimate(bad); est.Status != StatusNotComputable {
		t.Error("negative annual kwh should not be computable")
	}

	bad = base
	bad.Rate = rates.RateStructure{Kind: "indexed"}
	if est := Estimate(bad); est.Status != StatusNotComputable {
		t.Error("unpriceable kind should not be computable")
	}
}
