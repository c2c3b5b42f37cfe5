package pricing

// Status distinguishes a priced estimate from an explicit refusal to
// price. NOT_COMPUTABLE is a typed result, never a crash: it signals
// missing required buckets, missing delivery rates, or an unpriceable
// rate shape.
type Status string

const (
	StatusOK            Status = "OK"
	StatusNotComputable Status = "NOT_COMPUTABLE"
)

// Breakdown itemizes the annual cost. Delivery charges stay separate from
// supplier energy; they are never blended into the energy rate.
type Breakdown struct {
	SupplierEnergy float64 `json:"supplierEnergy"`
	TdspDelivery   float64 `json:"tdspDelivery"`
	TdspFixed      float64 `json:"tdspFixed"`
	OtherFees      float64 `json:"otherFees"`
}

// Total sums the breakdown lines.
func (b Breakdown) Total() float64 {
	return b.SupplierEnergy + b.TdspDelivery + b.TdspFixed + b.OtherFees
}

// CostEstimate is the calculator's immutable output. Components is the
// legacy breakdown shape, ComponentsV2 the current one; the fixed-fee
// sanity correction patches both so they never drift apart.
type CostEstimate struct {
	Status               Status    `json:"status"`
	AnnualCostDollars    float64   `json:"annualCostDollars"`
	MonthlyCostDollars   float64   `json:"monthlyCostDollars"`
	EffectiveCentsPerKwh float64   `json:"effectiveCentsPerKwh"`
	Components           Breakdown `json:"components"`
	ComponentsV2         Breakdown `json:"componentsV2"`
	Notes                []string  `json:"notes,omitempty"`
}
