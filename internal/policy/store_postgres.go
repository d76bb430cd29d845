package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
)

// PostgresStore persists policy documents in PostgreSQL. The full document
// is stored as a JSON blob next to the columns the queries filter on;
// schema evolution happens in the document, not the table.
//
// Expected schema:
//
//	CREATE TABLE policies (
//	    id           UUID        NOT NULL,
//	    version      INT         NOT NULL,
//	    current      BOOLEAN     NOT NULL,
//	    priority     INT         NOT NULL,
//	    office_id    UUID        NULL,
//	    document     JSONB       NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    published_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (id, version)
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed policy store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Publish(ctx context.Context, p *Policy) (*Policy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	stored := *p
	if stored.ID.IsNil() {
		stored.ID = id.NewPolicyID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.PublishedAt = time.Now()
	stored.Current = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Version assignment and current-flag swap happen inside one
	// transaction so exactly one version is ever current.
	var latest sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM policies WHERE id = $1`,
		uuid.UUID(stored.ID),
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("read latest policy version: %w", err)
	}
	stored.Version = int(latest.Int64) + 1

	if _, err := tx.ExecContext(ctx,
		`UPDATE policies SET current = FALSE WHERE id = $1 AND current`,
		uuid.UUID(stored.ID),
	); err != nil {
		return nil, fmt.Errorf("retire previous policy version: %w", err)
	}

	document, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("marshal policy document: %w", err)
	}

	var officeID any
	if stored.OfficeID != nil {
		officeID = uuid.UUID(*stored.OfficeID)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO policies (id, version, current, priority, office_id, document, created_at, published_at)
		VALUES ($1, $2, TRUE, $3, $4, $5, $6, $7)`,
		uuid.UUID(stored.ID), stored.Version, stored.Priority, officeID,
		document, stored.CreatedAt, stored.PublishedAt,
	); err != nil {
		return nil, fmt.Errorf("insert policy version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit publish tx: %w", err)
	}

	out := stored
	return &out, nil
}

func (s *PostgresStore) GetCurrent(ctx context.Context, policyID id.PolicyID) (*Policy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document FROM policies WHERE id = $1 AND current`,
		uuid.UUID(policyID),
	)
	return scanPolicy(row)
}

func (s *PostgresStore) ResolveForOffice(ctx context.Context, officeID *id.OfficeID) (*Policy, error) {
	current, err := s.ListCurrent(ctx)
	if err != nil {
		return nil, err
	}
	return resolveForOffice(current, officeID)
}

func (s *PostgresStore) ListCurrent(ctx context.Context) ([]*Policy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM policies WHERE current`)
	if err != nil {
		return nil, fmt.Errorf("list current policies: %w", err)
	}
	defer rows.Close()

	var out []*Policy
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("scan policy document: %w", err)
		}
		var p Policy
		if err := json.Unmarshal(document, &p); err != nil {
			return nil, fmt.Errorf("unmarshal policy document: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*Policy, error) {
	var document []byte
	if err := row.Scan(&document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan policy document: %w", err)
	}
	var p Policy
	if err := json.Unmarshal(document, &p); err != nil {
		return nil, fmt.Errorf("unmarshal policy document: %w", err)
	}
	return &p, nil
}
