package integrity

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
)

// PostgresBindingStore persists device bindings.
//
// Expected schema:
//
//	CREATE TABLE device_bindings (
//	    user_id           UUID        NOT NULL,
//	    device_id         UUID        NOT NULL,
//	    device_public_key BYTEA       NOT NULL,
//	    metadata          JSONB       NOT NULL DEFAULT '{}',
//	    bound_at          TIMESTAMPTZ NOT NULL,
//	    last_validated_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (user_id, device_id)
//	);
type PostgresBindingStore struct {
	db *sql.DB
}

// NewPostgresBindingStore constructs a PostgreSQL-backed binding store.
func NewPostgresBindingStore(db *sql.DB) *PostgresBindingStore {
	return &PostgresBindingStore{db: db}
}

func (s *PostgresBindingStore) Validate(ctx context.Context, userID id.UserID, deviceID id.DeviceID, presentedKey []byte) (BindingStatus, error) {
	var stored []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT device_public_key FROM device_bindings WHERE user_id = $1 AND device_id = $2`,
		uuid.UUID(userID), uuid.UUID(deviceID),
	).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BindingUnbound, nil
		}
		return BindingUnknown, fmt.Errorf("read device binding: %w", wrapUnavailable(err))
	}

	if len(presentedKey) == 0 {
		return BindingMissingPublicKey, nil
	}
	if !bytes.Equal(stored, presentedKey) {
		return BindingMismatch, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE device_bindings SET last_validated_at = $3 WHERE user_id = $1 AND device_id = $2`,
		uuid.UUID(userID), uuid.UUID(deviceID), time.Now(),
	); err != nil {
		// The validation already succeeded; a failed touch is not worth
		// failing the request over.
		return BindingValid, nil
	}
	return BindingValid, nil
}

func (s *PostgresBindingStore) Bind(ctx context.Context, rec *BindingRecord) error {
	boundAt := rec.BoundAt
	if boundAt.IsZero() {
		boundAt = time.Now()
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal binding metadata: %w", err)
	}
	if rec.Metadata == nil {
		metadata = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO device_bindings (user_id, device_id, device_public_key, metadata, bound_at, last_validated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		uuid.UUID(rec.UserID), uuid.UUID(rec.DeviceID), rec.DevicePublicKey, metadata, boundAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert device binding: %w", wrapUnavailable(err))
	}
	return nil
}

func (s *PostgresBindingStore) Get(ctx context.Context, userID id.UserID, deviceID id.DeviceID) (*BindingRecord, error) {
	var (
		rec      = BindingRecord{UserID: userID, DeviceID: deviceID}
		metadata []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT device_public_key, metadata, bound_at, last_validated_at
		FROM device_bindings WHERE user_id = $1 AND device_id = $2`,
		uuid.UUID(userID), uuid.UUID(deviceID),
	).Scan(&rec.DevicePublicKey, &metadata, &rec.BoundAt, &rec.LastValidatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read device binding: %w", wrapUnavailable(err))
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal binding metadata: %w", err)
		}
	}
	return &rec, nil
}

// wrapUnavailable tags an infrastructure error so the orchestrator can
// degrade instead of failing the verification.
func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
}
