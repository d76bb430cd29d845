package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
	platformtx "checkpoint/pkg/platform/tx"
)

// PostgresStore persists verdicts as opaque schema-versioned blobs next to
// an upserted per-user attendance status row.
//
// Expected schema:
//
//	CREATE TABLE attendance_verdicts (
//	    id             UUID        PRIMARY KEY,
//	    user_id        UUID        NOT NULL,
//	    schema_version INT         NOT NULL,
//	    verdict        JSONB       NOT NULL,
//	    created_at     TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE attendance_status (
//	    user_id     UUID        PRIMARY KEY,
//	    verdict_id  UUID        NOT NULL REFERENCES attendance_verdicts(id),
//	    kind        TEXT        NOT NULL,
//	    decision    TEXT        NOT NULL,
//	    occurred_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed attendance store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, v *IntegrityVerdict) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}

	// Joins an ambient transaction when the caller carries one; the caller
	// then owns the commit.
	tx, ambient := platformtx.From(ctx)
	if !ambient {
		var err error
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin save tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_verdicts (id, user_id, schema_version, verdict, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(v.ID), uuid.UUID(v.UserID), v.SchemaVersion, blob, v.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_status (user_id, verdict_id, kind, decision, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			verdict_id = EXCLUDED.verdict_id,
			kind = EXCLUDED.kind,
			decision = EXCLUDED.decision,
			occurred_at = EXCLUDED.occurred_at`,
		uuid.UUID(v.UserID), uuid.UUID(v.ID), v.Kind.String(), v.Decision.String(), v.Timestamp,
	); err != nil {
		return fmt.Errorf("upsert attendance status: %w", err)
	}

	if !ambient {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit save tx: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, attendanceID id.AttendanceID) (*IntegrityVerdict, error) {
	return s.scanVerdict(s.db.QueryRowContext(ctx,
		`SELECT verdict FROM attendance_verdicts WHERE id = $1`,
		uuid.UUID(attendanceID),
	))
}

func (s *PostgresStore) Latest(ctx context.Context, userID id.UserID) (*IntegrityVerdict, error) {
	return s.scanVerdict(s.db.QueryRowContext(ctx, `
		SELECT v.verdict FROM attendance_status st
		JOIN attendance_verdicts v ON v.id = st.verdict_id
		WHERE st.user_id = $1`,
		uuid.UUID(userID),
	))
}

func (s *PostgresStore) scanVerdict(row *sql.Row) (*IntegrityVerdict, error) {
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan verdict: %w", err)
	}
	var v IntegrityVerdict
	if err := json.Unmarshal(blob, &v); err != nil {
		return nil, fmt.Errorf("unmarshal verdict: %w", err)
	}
	return &v, nil
}
