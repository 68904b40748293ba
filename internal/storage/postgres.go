package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/airguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db, bind: rebindDollar}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.exec(ctx, []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id UUID PRIMARY KEY,
			ts BIGINT NOT NULL,
			severity TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			signature_id TEXT NOT NULL,
			signature TEXT NOT NULL,
			contact_uuid TEXT NOT NULL,
			transmitter TEXT NOT NULL,
			frame_type TEXT NOT NULL,
			tap TEXT,
			signal INTEGER NOT NULL,
			rules_json JSONB NOT NULL,
			context_json JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE TABLE IF NOT EXISTS contact_records (
			id BIGSERIAL PRIMARY KEY,
			contact_uuid TEXT NOT NULL,
			record_type TEXT NOT NULL,
			record_value TEXT NOT NULL,
			frame_count INTEGER NOT NULL,
			rssi_average DOUBLE PRECISION NOT NULL,
			rssi_stddev DOUBLE PRECISION NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contact_records_contact ON contact_records(contact_uuid, created_at)`,
		`CREATE TABLE IF NOT EXISTS histogram_rows (
			id BIGSERIAL PRIMARY KEY,
			bssid TEXT NOT NULL,
			channel INTEGER NOT NULL,
			created_at BIGINT NOT NULL,
			counts_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_histogram_rows_bssid ON histogram_rows(bssid, channel, created_at)`,
		`CREATE TABLE IF NOT EXISTS bandits (
			uuid TEXT PRIMARY KEY,
			is_custom BOOLEAN NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			fingerprints_json TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bandit_identifiers (
			id BIGSERIAL PRIMARY KEY,
			uuid TEXT NOT NULL,
			bandit_uuid TEXT NOT NULL REFERENCES bandits(uuid) ON DELETE CASCADE,
			type TEXT NOT NULL,
			configuration_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bandit_identifiers_bandit ON bandit_identifiers(bandit_uuid)`,
	})
}
