package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "checkpoint/pkg/domain"
)

// PostgresStore appends audit events to PostgreSQL. Append-only: no update
// or delete path exists on purpose.
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    seq        BIGSERIAL   PRIMARY KEY,
//	    user_id    UUID        NOT NULL,
//	    action     TEXT        NOT NULL,
//	    occurred   TIMESTAMPTZ NOT NULL,
//	    event      JSONB       NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (user_id, action, occurred, event)
		VALUES ($1, $2, $3, $4)`,
		uuid.UUID(event.UserID), string(event.Action), event.Timestamp, payload,
	); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event FROM audit_events WHERE user_id = $1 ORDER BY seq`,
		uuid.UUID(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal audit event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
