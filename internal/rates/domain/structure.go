package rates

import (
	"errors"
	"time"

	analysis "intelliwatt/internal/analysis/domain"
)

// Kind tags a rate structure variant.
type Kind string

const (
	KindFlat      Kind = "flat"
	KindTiered    Kind = "tiered"
	KindTimeOfUse Kind = "tou"
)

// Tier is one tiered-rate step. UptoKwh is the cumulative monthly ceiling
// for the step; zero means unbounded (the final step).
type Tier struct {
	UptoKwh     float64 `json:"uptoKwh"`
	CentsPerKwh float64 `json:"centsPerKwh"`
}

// TouPeriod is one time-of-use pricing window. An empty DayType means all
// days; empty start/end means the whole day. Months restricts the period
// seasonally; an empty list is an all-months catch-all.
type TouPeriod struct {
	DayType     analysis.DayType `json:"dayType,omitempty"`
	StartHHMM   string           `json:"startHHMM,omitempty"`
	EndHHMM     string           `json:"endHHMM,omitempty"`
	Months      []int            `json:"months,omitempty"`
	CentsPerKwh float64          `json:"centsPerKwh"`
}

// InMonth reports whether the period applies to a civil month (1..12).
// A period with no explicit months applies everywhere.
func (p TouPeriod) InMonth(month int) bool {
	if len(p.Months) == 0 {
		return true
	}
	for _, m := range p.Months {
		if m == month {
			return true
		}
	}
	return false
}

// RateStructure is the tagged variant describing a retail plan's energy
// pricing: exactly one of the shape fields is meaningful per Kind.
// A structure carrying both tiers and TOU periods is unsupported; the
// interpreter degrades it to tier-only pricing rather than blending.
type RateStructure struct {
	Kind        Kind        `json:"kind"`
	CentsPerKwh float64     `json:"centsPerKwh,omitempty"`
	Tiers       []Tier      `json:"tiers,omitempty"`
	Periods     []TouPeriod `json:"periods,omitempty"`
}

var (
	ErrNoTiers      = errors.New("rates: tiered structure without tiers")
	ErrNoPeriods    = errors.New("rates: tou structure without periods")
	ErrOverlap      = errors.New("rates: tou periods overlap within a month")
	ErrNegativeRate = errors.New("rates: negative cents per kwh")
)

// DeliveryRates is one effective-dated version of a TDSP's delivery tariff.
type DeliveryRates struct {
	TdspCode       string
	EffectiveDate  time.Time
	PerKwhCents    float64
	MonthlyDollars float64
}
