package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"anchorid/pkg/requestcontext"
	"anchorid/pkg/sentinel"
)

// PostgresStore persists artifacts in PostgreSQL. Rows are append-only;
// resume reads select the greatest timestamp per stage/investor pair.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed checkpoint store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the checkpoints table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id          UUID PRIMARY KEY,
			stage       TEXT NOT NULL,
			investor_id TEXT NOT NULL,
			ts          TEXT NOT NULL,
			payload     JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			UNIQUE (stage, investor_id, ts, id)
		);
		CREATE INDEX IF NOT EXISTS checkpoints_lookup
			ON checkpoints (investor_id, stage, ts DESC);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate checkpoints table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, stage Stage, investorID string, payload any) (Record, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Record{}, err
	}

	now := requestcontext.Now(ctx)
	record := Record{
		ID:         uuid.NewString(),
		Stage:      stage,
		InvestorID: investorID,
		Timestamp:  Timestamp(now),
		Payload:    raw,
		SavedAt:    now,
	}

	const query = `
		INSERT INTO checkpoints (id, stage, investor_id, ts, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID, string(record.Stage), record.InvestorID,
		record.Timestamp, []byte(record.Payload), record.SavedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert checkpoint: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) LoadLatest(ctx context.Context, stage Stage, investorID string) (Record, error) {
	const query = `
		SELECT id, stage, investor_id, ts, payload, created_at
		FROM checkpoints
		WHERE investor_id = $1 AND stage = $2
		ORDER BY ts DESC
		LIMIT 1
	`
	var record Record
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, investorID, string(stage)).Scan(
		&record.ID, &record.Stage, &record.InvestorID,
		&record.Timestamp, &payload, &record.SavedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("checkpoint %s/%s: %w", stage, investorID, sentinel.ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load checkpoint: %w", err)
	}
	record.Payload = payload
	return record, nil
}

var _ Store = (*PostgresStore)(nil)
