package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	plans "intelliwatt/internal/plans/domain"
)

const defaultTemplateTable = "plan_templates"

// TemplateRepository deduplicates plan-document templates by identity key.
// primary_key is unique; lookup_keys is a jsonb array searched in order
// when the primary key misses.
type TemplateRepository struct {
	db    *sql.DB
	table string
}

// TemplateOption configures the repository.
type TemplateOption func(*TemplateRepository)

// WithTemplateTable overrides the default table name.
func WithTemplateTable(table string) TemplateOption {
	return func(r *TemplateRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewTemplateRepository constructs a repository.
func NewTemplateRepository(db *sql.DB, opts ...TemplateOption) *TemplateRepository {
	repo := &TemplateRepository{db: db, table: defaultTemplateTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// TemplateRecord is a stored template row.
type TemplateRecord struct {
	PrimaryKey string
	KeyType    plans.KeyType
	Confidence int
	LookupKeys []string
	CreatedAt  time.Time
}

// Upsert stores an identity key, keeping the stronger record when the
// primary key already exists.
func (r *TemplateRepository) Upsert(ctx context.Context, key plans.TemplateIdentityKey) error {
	if r == nil || r.db == nil {
		return errors.New("template repo: nil db")
	}
	if key.PrimaryKey == "" {
		return errors.New("template repo: empty primary key")
	}
	lookupJSON, err := json.Marshal(key.LookupKeys)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (primary_key, key_type, confidence, lookup_keys, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (primary_key)
DO UPDATE SET key_type = EXCLUDED.key_type,
	confidence = EXCLUDED.confidence,
	lookup_keys = EXCLUDED.lookup_keys
WHERE EXCLUDED.confidence >= %s.confidence`, r.table, r.table)

	_, err = r.db.ExecContext(ctx, query,
		key.PrimaryKey, string(key.KeyType), key.Confidence, lookupJSON, time.Now().UTC())
	return err
}

// Find resolves a template by exact primary key first, then walks the
// candidate lookup keys strongest-first against stored lookup_keys.
// Returns nil when nothing matches.
func (r *TemplateRepository) Find(ctx context.Context, key plans.TemplateIdentityKey) (*TemplateRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("template repo: nil db")
	}

	record, err := r.findByPrimary(ctx, key.PrimaryKey)
	if err != nil || record != nil {
		return record, err
	}
	for _, lookup := range key.LookupKeys {
		record, err = r.findByLookup(ctx, lookup)
		if err != nil || record != nil {
			return record, err
		}
	}
	return nil, nil
}

func (r *TemplateRepository) findByPrimary(ctx context.Context, primaryKey string) (*TemplateRecord, error) {
	query := fmt.Sprintf(`
SELECT primary_key, key_type, confidence, lookup_keys, created_at
FROM %s
WHERE primary_key = $1
LIMIT 1`, r.table)
	return scanTemplate(r.db.QueryRowContext(ctx, query, primaryKey))
}

func (r *TemplateRepository) findByLookup(ctx context.Context, lookup string) (*TemplateRecord, error) {
	query := fmt.Sprintf(`
SELECT primary_key, key_type, confidence, lookup_keys, created_at
FROM %s
WHERE lookup_keys @> to_jsonb(ARRAY[$1::text])
ORDER BY confidence DESC
LIMIT 1`, r.table)
	return scanTemplate(r.db.QueryRowContext(ctx, query, lookup))
}

func scanTemplate(row *sql.Row) (*TemplateRecord, error) {
	var record TemplateRecord
	var keyType string
	var lookupJSON []byte
	err := row.Scan(&record.PrimaryKey, &keyType, &record.Confidence, &lookupJSON, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.KeyType = plans.KeyType(keyType)
	if err := json.Unmarshal(lookupJSON, &record.LookupKeys); err != nil {
		return nil, err
	}
	return &record, nil
}
