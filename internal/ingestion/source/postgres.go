package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/postgres"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS publications (
	seq         BIGSERIAL PRIMARY KEY,
	record      JSONB NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectRecordsSQL = `SELECT record FROM publications ORDER BY seq`
	insertRecordSQL  = `INSERT INTO publications (record) VALUES ($1) RETURNING seq`
)

// PostgresSource keeps records in the publications table. The BIGSERIAL
// sequence fixes their order, and therefore the document ids.
type PostgresSource struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresSource(db *postgres.Client) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

// EnsureSchema creates the publications table if needed.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("creating publications table: %w", err)
	}
	return nil
}

func (s *PostgresSource) Load(ctx context.Context) ([]ingestion.RawRecord, error) {
	rows, err := s.db.DB.QueryContext(ctx, selectRecordsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}
	defer rows.Close()

	records := make([]ingestion.RawRecord, 0, 1024)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning publication: %w", err)
		}
		rec := ingestion.RawRecord{}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding publication %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating publications: %w", err)
	}
	s.logger.Debug("loaded publications", "count", len(records))
	return records, nil
}

func (s *PostgresSource) Append(ctx context.Context, rec ingestion.RawRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	var seq int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, insertRecordSQL, raw).Scan(&seq)
	})
	if err != nil {
		return fmt.Errorf("inserting publication: %w", err)
	}
	s.logger.Debug("publication stored", "seq", seq)
	return nil
}
