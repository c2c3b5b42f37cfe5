package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	rates "intelliwatt/internal/rates/domain"
)

const defaultTdspTable = "tdsp_delivery_rates"

// TdspRepository resolves effective-dated TDSP delivery tariffs.
type TdspRepository struct {
	db    *sql.DB
	table string
}

// TdspOption configures the repository.
type TdspOption func(*TdspRepository)

// WithTdspTable overrides the default table name.
func WithTdspTable(table string) TdspOption {
	return func(r *TdspRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewTdspRepository constructs a repository.
func NewTdspRepository(db *sql.DB, opts ...TdspOption) *TdspRepository {
	repo := &TdspRepository{db: db, table: defaultTdspTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Lookup returns the tariff version effective as of a date: the latest row
// whose effective date is on or before asOf. A missing utility or a row
// with a NULL numeric component returns nil, so pricing fails closed
// instead of guessing.
func (r *TdspRepository) Lookup(ctx context.Context, tdspCode string, asOf time.Time) (*rates.DeliveryRates, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tdsp repo: nil db")
	}
	if tdspCode == "" {
		return nil, errors.New("tdsp repo: empty tdsp code")
	}
	if asOf.IsZero() {
		return nil, errors.New("tdsp repo: invalid as-of date")
	}

	query := fmt.Sprintf(`
SELECT tdsp_code, effective_date, per_kwh_cents, monthly_dollars
FROM %s
WHERE tdsp_code = $1 AND effective_date <= $2
ORDER BY effective_date DESC
LIMIT 1`, r.table)

	var dr rates.DeliveryRates
	var perKwh, monthly sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, tdspCode, asOf.UTC()).
		Scan(&dr.TdspCode, &dr.EffectiveDate, &perKwh, &monthly)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !perKwh.Valid || !monthly.Valid {
		return nil, nil
	}
	dr.PerKwhCents = perKwh.Float64
	dr.MonthlyDollars = monthly.Float64
	dr.EffectiveDate = dr.EffectiveDate.UTC()
	return &dr, nil
}
