package operation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nameclaim/pkg/platform/sentinel"
	"nameclaim/pkg/requestcontext"
)

// PostgresStore persists operation records in PostgreSQL. Writes run inside
// a transaction with a row lock so concurrent writers to the same domain
// serialize; writers to different domains only contend on their own rows.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the operations table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS operations (
			id             BIGSERIAL,
			domain_name    TEXT PRIMARY KEY,
			operation_id   TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL,
			kind           TEXT NOT NULL,
			wallet_address TEXT NOT NULL DEFAULT '',
			needs_transfer BOOLEAN NOT NULL DEFAULT FALSE,
			last_updated   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS operations_operation_id_idx ON operations (operation_id);
		CREATE INDEX IF NOT EXISTS operations_wallet_idx ON operations (wallet_address);
	`)
	if err != nil {
		return fmt.Errorf("migrate operations table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, u Update) (*Record, error) {
	return s.Execute(ctx, u.DomainName, func(*Record) (*Update, error) {
		return &u, nil
	})
}

// Execute holds the domain's row lock across the fn callback, so the decide
// step and the write land as one unit against concurrent writers.
func (s *PostgresStore) Execute(ctx context.Context, domain string, fn func(*Record) (*Update, error)) (*Record, error) {
	key := NormalizeDomain(domain)
	if key == "" {
		return nil, sentinel.ErrInvalidState
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing *Record
	row := tx.QueryRowContext(ctx, `
		SELECT domain_name, operation_id, status, kind, wallet_address, needs_transfer, last_updated
		FROM operations WHERE domain_name = $1 FOR UPDATE`, key)
	rec, err := scanRecord(row)
	switch {
	case err == nil:
		existing = rec
	case errors.Is(err, sql.ErrNoRows):
		// new key
	default:
		return nil, fmt.Errorf("load record for upsert: %w", err)
	}

	u, err := fn(existing)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return existing, nil
	}

	u.DomainName = key
	merged := merge(existing, *u)
	merged.LastUpdated = requestcontext.Now(ctx)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO operations (domain_name, operation_id, status, kind, wallet_address, needs_transfer, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (domain_name) DO UPDATE SET
			operation_id   = EXCLUDED.operation_id,
			status         = EXCLUDED.status,
			kind           = EXCLUDED.kind,
			wallet_address = EXCLUDED.wallet_address,
			needs_transfer = EXCLUDED.needs_transfer,
			last_updated   = EXCLUDED.last_updated`,
		merged.DomainName, merged.OperationID, string(merged.Status), string(merged.Kind),
		merged.WalletAddress, merged.NeedsTransfer, merged.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("upsert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return &merged, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Record, error) {
	query := `
		SELECT domain_name, operation_id, status, kind, wallet_address, needs_transfer, last_updated
		FROM operations`
	args := []any{}
	if wallet := NormalizeWallet(f.WalletAddress); wallet != "" {
		query += ` WHERE wallet_address = $1`
		args = append(args, wallet)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindByDomain(ctx context.Context, domain string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT domain_name, operation_id, status, kind, wallet_address, needs_transfer, last_updated
		FROM operations WHERE domain_name = $1`, NormalizeDomain(domain))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by domain: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindByOperationID(ctx context.Context, operationID string) (*Record, error) {
	if operationID == "" {
		return nil, sentinel.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT domain_name, operation_id, status, kind, wallet_address, needs_transfer, last_updated
		FROM operations WHERE operation_id = $1 ORDER BY id DESC LIMIT 1`, operationID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by operation id: %w", err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var status, kind string
	if err := row.Scan(&rec.DomainName, &rec.OperationID, &status, &kind,
		&rec.WalletAddress, &rec.NeedsTransfer, &rec.LastUpdated); err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	rec.Kind = Kind(kind)
	return &rec, nil
}
