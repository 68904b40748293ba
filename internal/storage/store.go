package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"airguard/internal/config"
	"airguard/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveAlert(ctx context.Context, alert model.Alert) error
	SaveContactRecord(ctx context.Context, rec model.ContactRecord) error
	SaveHistogramRow(ctx context.Context, row model.HistogramRow) error
	LoadHistogram(ctx context.Context, bssid string, channel int, since time.Time) ([]model.HistogramRow, error)
	LoadBandits(ctx context.Context) ([]model.BanditRow, error)
	SaveBandit(ctx context.Context, bandit model.BanditRow) error
}

// NewStore opens the configured backend. A disabled storage section yields
// a nil store and callers skip persistence.
func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

// baseStore holds the queries shared by both dialects. Statements are
// written with ? placeholders and passed through bind.
type baseStore struct {
	db   *sql.DB
	bind func(string) string
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) q(query string) string {
	if b.bind == nil {
		return query
	}
	return b.bind(query)
}

func (b *baseStore) exec(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *baseStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if b.db == nil {
		return nil
	}
	id := alert.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := b.db.ExecContext(ctx, b.q(
		`INSERT INTO alerts (id, ts, severity, alert_type, signature_id, signature, contact_uuid, transmitter, frame_type, tap, signal, rules_json, context_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id.String(),
		unixMillis(alert.Timestamp),
		alert.Severity,
		alert.AlertType,
		alert.SignatureID.String(),
		alert.Signature,
		alert.ContactID.String(),
		alert.Transmitter,
		alert.FrameType,
		alert.Tap,
		alert.Signal,
		encodeJSON(alert.Rules),
		encodeJSON(alert.Context),
	)
	return err
}

func (b *baseStore) SaveContactRecord(ctx context.Context, rec model.ContactRecord) error {
	if b.db == nil {
		return nil
	}
	_, err := b.db.ExecContext(ctx, b.q(
		`INSERT INTO contact_records (contact_uuid, record_type, record_value, frame_count, rssi_average, rssi_stddev, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		rec.ContactID.String(),
		string(rec.RecordType),
		rec.RecordValue,
		rec.FrameCount,
		rec.RSSIAverage,
		rec.RSSIStdDev,
		unixMillis(rec.CreatedAt),
	)
	return err
}

func (b *baseStore) SaveHistogramRow(ctx context.Context, row model.HistogramRow) error {
	if b.db == nil {
		return nil
	}
	_, err := b.db.ExecContext(ctx, b.q(
		`INSERT INTO histogram_rows (bssid, channel, created_at, counts_json) VALUES (?, ?, ?, ?)`),
		row.BSSID,
		row.Channel,
		unixMillis(row.CreatedAt),
		encodeJSON(row.Counts),
	)
	return err
}

func (b *baseStore) LoadHistogram(ctx context.Context, bssid string, channel int, since time.Time) ([]model.HistogramRow, error) {
	if b.db == nil {
		return nil, nil
	}
	rows, err := b.db.QueryContext(ctx, b.q(
		`SELECT bssid, channel, created_at, counts_json FROM histogram_rows
		WHERE bssid = ? AND channel = ? AND created_at >= ?
		ORDER BY created_at, id`),
		bssid, channel, unixMillis(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.HistogramRow
	for rows.Next() {
		var (
			row    model.HistogramRow
			ts     int64
			counts string
		)
		if err := rows.Scan(&row.BSSID, &row.Channel, &ts, &counts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(counts), &row.Counts); err != nil {
			return nil, err
		}
		row.CreatedAt = fromUnixMillis(ts)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (b *baseStore) LoadBandits(ctx context.Context) ([]model.BanditRow, error) {
	if b.db == nil {
		return nil, nil
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT uuid, is_custom, name, description, fingerprints_json FROM bandits ORDER BY name, uuid`)
	if err != nil {
		return nil, err
	}
	var out []model.BanditRow
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			row          model.BanditRow
			id           string
			fingerprints string
		)
		if err := rows.Scan(&id, &row.IsCustom, &row.Name, &row.Description, &fingerprints); err != nil {
			rows.Close()
			return nil, err
		}
		if row.UUID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return nil, err
		}
		if fingerprints != "" {
			if err := json.Unmarshal([]byte(fingerprints), &row.Fingerprints); err != nil {
				rows.Close()
				return nil, err
			}
		}
		index[row.UUID] = len(out)
		out = append(out, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	idRows, err := b.db.QueryContext(ctx,
		`SELECT id, uuid, bandit_uuid, type, configuration_json FROM bandit_identifiers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer idRows.Close()
	for idRows.Next() {
		var (
			ir         model.IdentifierRow
			id, bandit string
			configJSON string
		)
		if err := idRows.Scan(&ir.ID, &id, &bandit, &ir.Type, &configJSON); err != nil {
			return nil, err
		}
		if ir.UUID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		owner, err := uuid.Parse(bandit)
		if err != nil {
			return nil, err
		}
		i, ok := index[owner]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(configJSON), &ir.Configuration); err != nil {
			return nil, err
		}
		out[i].Identifiers = append(out[i].Identifiers, ir)
	}
	return out, idRows.Err()
}

// SaveBandit upserts the bandit and replaces its identifiers.
func (b *baseStore) SaveBandit(ctx context.Context, bandit model.BanditRow) error {
	if b.db == nil {
		return nil
	}
	if bandit.UUID == uuid.Nil {
		return errors.New("bandit uuid required")
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, b.q(
		`INSERT INTO bandits (uuid, is_custom, name, description, fingerprints_json) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET is_custom = excluded.is_custom, name = excluded.name,
			description = excluded.description, fingerprints_json = excluded.fingerprints_json`),
		bandit.UUID.String(),
		bandit.IsCustom,
		bandit.Name,
		bandit.Description,
		encodeJSON(bandit.Fingerprints),
	); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, b.q(`DELETE FROM bandit_identifiers WHERE bandit_uuid = ?`), bandit.UUID.String()); err != nil {
		_ = tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx, b.q(
		`INSERT INTO bandit_identifiers (uuid, bandit_uuid, type, configuration_json) VALUES (?, ?, ?, ?)`))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, ir := range bandit.Identifiers {
		id := ir.UUID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx, id.String(), bandit.UUID.String(), ir.Type, encodeJSON(ir.Configuration)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// rebindDollar rewrites ? placeholders to $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
