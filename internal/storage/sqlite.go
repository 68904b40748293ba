package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:airguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.exec(ctx, []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			ts INTEGER NOT NULL,
			severity TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			signature_id TEXT NOT NULL,
			signature TEXT NOT NULL,
			contact_uuid TEXT NOT NULL,
			transmitter TEXT NOT NULL,
			frame_type TEXT NOT NULL,
			tap TEXT,
			signal INTEGER NOT NULL,
			rules_json TEXT NOT NULL,
			context_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE TABLE IF NOT EXISTS contact_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contact_uuid TEXT NOT NULL,
			record_type TEXT NOT NULL,
			record_value TEXT NOT NULL,
			frame_count INTEGER NOT NULL,
			rssi_average REAL NOT NULL,
			rssi_stddev REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contact_records_contact ON contact_records(contact_uuid, created_at)`,
		`CREATE TABLE IF NOT EXISTS histogram_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bssid TEXT NOT NULL,
			channel INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			counts_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_histogram_rows_bssid ON histogram_rows(bssid, channel, created_at)`,
		`CREATE TABLE IF NOT EXISTS bandits (
			uuid TEXT PRIMARY KEY,
			is_custom INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			fingerprints_json TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bandit_identifiers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL,
			bandit_uuid TEXT NOT NULL REFERENCES bandits(uuid) ON DELETE CASCADE,
			type TEXT NOT NULL,
			configuration_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bandit_identifiers_bandit ON bandit_identifiers(bandit_uuid)`,
	})
}
