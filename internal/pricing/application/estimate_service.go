package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	analysisapp "intelliwatt/internal/analysis/application"
	analysis "intelliwatt/internal/analysis/domain"
	"intelliwatt/internal/calendar"
	"intelliwatt/internal/observability/metrics"
	pricing "intelliwatt/internal/pricing/domain"
	rates "intelliwatt/internal/rates/domain"
)

// BucketComputer produces monthly bucket totals for a usage window, plus
// the count of stored intervals contributing to each month.
type BucketComputer interface {
	ComputeBuckets(ctx context.Context, window analysisapp.UsageWindow, required []analysis.BucketKey, opts analysis.AggregateOptions) (analysis.MonthlyBucketTotals, map[string]int, error)
}

// DeliveryRateProvider resolves TDSP delivery rates effective at a date.
type DeliveryRateProvider interface {
	Lookup(ctx context.Context, tdspCode string, asOf time.Time) (*rates.DeliveryRates, error)
}

// EstimateRequest describes one plan-cost estimate. Months lists explicit
// YYYY-MM keys; when it is empty, FromMonth plus MonthsCount expand to that
// many consecutive civil months instead.
type EstimateRequest struct {
	ESIID       string
	Meter       string
	Months      []string
	FromMonth   string
	MonthsCount int
	Rate        rates.RateStructure
	TdspCode    string
	AsOf        time.Time
	Options     analysis.AggregateOptions
}

// EstimateApplicationService orchestrates bucket aggregation, delivery rate
// lookup and the cost calculation for one plan against one meter's history.
type EstimateApplicationService struct {
	buckets  BucketComputer
	delivery DeliveryRateProvider
	cal      *calendar.Resolver
}

// NewEstimateApplicationService constructs the service.
func NewEstimateApplicationService(buckets BucketComputer, delivery DeliveryRateProvider, cal *calendar.Resolver) (*EstimateApplicationService, error) {
	if buckets == nil {
		return nil, errors.New("estimate app service: nil bucket computer")
	}
	if delivery == nil {
		return nil, errors.New("estimate app service: nil delivery rate provider")
	}
	if cal == nil {
		return nil, errors.New("estimate app service: nil calendar resolver")
	}
	return &EstimateApplicationService{buckets: buckets, delivery: delivery, cal: cal}, nil
}

// MonthTotal is one month's total consumption in the estimate window.
// Intervals counts the stored readings behind the total; zero means the
// month had no data, not zero usage.
type MonthTotal struct {
	MonthKey  string
	TotalKwh  float64
	Intervals int
}

// EstimateOutcome carries the estimate and the usage it was priced against.
type EstimateOutcome struct {
	Estimate      pricing.CostEstimate
	MonthlyTotals []MonthTotal
}

// Estimate prices one plan over the requested month window.
//
// Infrastructure failures surface as errors. A plan that cannot be priced
// against the available usage or delivery rates is not an error: it comes
// back as a NOT_COMPUTABLE estimate whose notes explain what was missing.
func (s *EstimateApplicationService) Estimate(ctx context.Context, req EstimateRequest) (pricing.CostEstimate, error) {
	outcome, err := s.EstimateDetailed(ctx, req)
	if err != nil {
		return pricing.CostEstimate{}, err
	}
	return outcome.Estimate, nil
}

// EstimateDetailed prices one plan and returns the monthly usage totals
// alongside the estimate, for report rendering.
func (s *EstimateApplicationService) EstimateDetailed(ctx context.Context, req EstimateRequest) (EstimateOutcome, error) {
	started := time.Now()
	outcome, err := s.estimate(ctx, req)
	if err != nil {
		metrics.ObserveEstimate(string(pricing.StatusNotComputable), time.Since(started))
		return EstimateOutcome{}, err
	}
	metrics.ObserveEstimate(string(outcome.Estimate.Status), time.Since(started))
	return outcome, nil
}

func (s *EstimateApplicationService) estimate(ctx context.Context, req EstimateRequest) (EstimateOutcome, error) {
	months, err := s.resolveMonths(req)
	if err != nil {
		return EstimateOutcome{}, err
	}

	required, _ := rates.RequiredBuckets(req.Rate)
	// The annual kWh figure always comes from the total bucket, whatever
	// the structure's own buckets are.
	withTotal := append([]analysis.BucketKey{analysis.TotalKey}, required...)

	usage, counts, err := s.buckets.ComputeBuckets(ctx, analysisapp.UsageWindow{
		ESIID:  req.ESIID,
		Meter:  req.Meter,
		Months: months,
	}, withTotal, req.Options)
	if err != nil {
		return EstimateOutcome{}, err
	}

	var annualKwh float64
	totals := make([]MonthTotal, 0, len(months))
	for _, monthKey := range months {
		total, ok := usage.Get(monthKey, analysis.TotalKey)
		if ok {
			annualKwh += total
		}
		totals = append(totals, MonthTotal{MonthKey: monthKey, TotalKwh: total, Intervals: counts[monthKey]})
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	tdsp, err := s.delivery.Lookup(ctx, req.TdspCode, asOf)
	if err != nil {
		return EstimateOutcome{}, err
	}

	est := pricing.Estimate(pricing.EstimateInput{
		AnnualKwh:   annualKwh,
		MonthsCount: len(months),
		Rate:        req.Rate,
		Usage:       usage,
		Tdsp:        tdsp,
	})
	for _, monthKey := range months {
		if counts[monthKey] == 0 {
			est.Notes = append(est.Notes, "no stored intervals for "+monthKey)
		}
	}
	return EstimateOutcome{Estimate: est, MonthlyTotals: totals}, nil
}

// resolveMonths returns the explicit month keys, or expands the
// FromMonth/MonthsCount shorthand into consecutive civil months.
func (s *EstimateApplicationService) resolveMonths(req EstimateRequest) ([]string, error) {
	if len(req.Months) == 0 && req.FromMonth != "" && req.MonthsCount > 0 {
		start, _, ok := s.cal.MonthBounds(req.FromMonth)
		if !ok {
			return nil, fmt.Errorf("estimate app service: bad month key %q", req.FromMonth)
		}
		return s.cal.MonthKeys(start, req.MonthsCount), nil
	}
	if len(req.Months) == 0 {
		return nil, analysis.ErrNoMonths
	}
	for _, monthKey := range req.Months {
		if _, _, ok := s.cal.MonthBounds(monthKey); !ok {
			return nil, fmt.Errorf("estimate app service: bad month key %q", monthKey)
		}
	}
	return req.Months, nil
}
