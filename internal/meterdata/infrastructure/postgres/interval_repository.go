package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	meterdata "intelliwatt/internal/meterdata/domain"
)

const defaultIntervalTable = "consumption_intervals"

// IntervalRepository persists canonical 15-minute intervals. The table
// carries a unique constraint on (esiid, meter, ts); writes are upserts on
// that triple, so re-ingesting a file is an identity operation.
type IntervalRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*IntervalRepository)

// WithIntervalTable overrides the default table name.
func WithIntervalTable(table string) RepositoryOption {
	return func(r *IntervalRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewIntervalRepository constructs a repository using the default table.
func NewIntervalRepository(db *sql.DB, opts ...RepositoryOption) *IntervalRepository {
	repo := &IntervalRepository{db: db, table: defaultIntervalTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// UpsertIntervals writes a batch of canonical intervals. Invalid intervals
// reject the whole batch before any row is written.
func (r *IntervalRepository) UpsertIntervals(ctx context.Context, intervals []meterdata.CanonicalInterval) error {
	if r == nil || r.db == nil {
		return errors.New("interval repo: nil db")
	}
	if len(intervals) == 0 {
		return nil
	}
	for _, ci := range intervals {
		if err := ci.Validate(); err != nil {
			return err
		}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (esiid, meter, ts, kwh, filled, source)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (esiid, meter, ts)
DO UPDATE SET kwh = EXCLUDED.kwh, filled = EXCLUDED.filled, source = EXCLUDED.source`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ci := range intervals {
		if _, err := stmt.ExecContext(ctx, ci.ESIID, ci.Meter, ci.TS.UTC(), ci.KWh, ci.Filled, string(ci.Source)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRange loads one meter stream's intervals in [from, to), ordered
// chronologically so downstream aggregation stays deterministic.
func (r *IntervalRepository) ListRange(ctx context.Context, esiid, meter string, from, to time.Time) ([]meterdata.CanonicalInterval, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("interval repo: nil db")
	}
	if esiid == "" {
		return nil, meterdata.ErrEmptyESIID
	}
	if meter == "" {
		return nil, meterdata.ErrEmptyMeter
	}
	if !to.After(from) {
		return nil, meterdata.ErrInvalidRange
	}

	query := fmt.Sprintf(`
SELECT esiid, meter, ts, kwh, filled, source
FROM %s
WHERE esiid = $1 AND meter = $2 AND ts >= $3 AND ts < $4
ORDER BY ts ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, esiid, meter, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []meterdata.CanonicalInterval
	for rows.Next() {
		var ci meterdata.CanonicalInterval
		var source string
		if err := rows.Scan(&ci.ESIID, &ci.Meter, &ci.TS, &ci.KWh, &ci.Filled, &source); err != nil {
			return nil, err
		}
		ci.TS = ci.TS.UTC()
		ci.Source = meterdata.Source(source)
		intervals = append(intervals, ci)
	}
	return intervals, rows.Err()
}
