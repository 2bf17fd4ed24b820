package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/mobility-stats/internal/model"
)

// SQLiteStore implements RecordStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id           TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	nb_employees INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS records (
	id          TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL DEFAULT '',
	data        TEXT NOT NULL,
	typo        TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_campaigns_company_id ON campaigns(company_id);
CREATE INDEX IF NOT EXISTS idx_records_campaign_id ON records(campaign_id);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);
`

const sqliteUpsertRecord = `INSERT INTO records (id, campaign_id, data, typo, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	campaign_id = excluded.campaign_id,
	data = excluded.data,
	typo = excluded.typo,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, company_id, name, url, nb_employees, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_id = excluded.company_id,
			name = excluded.name,
			url = excluded.url,
			nb_employees = excluded.nb_employees,
			updated_at = excluded.updated_at`,
		c.ID, c.CompanyID, c.Name, c.URL, c.NbEmployees, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert campaign %s", c.ID)
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, name, url, nb_employees, created_at, updated_at FROM campaigns WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.CompanyID, &c.Name, &c.URL, &c.NbEmployees, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: campaign %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get campaign %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) InsertRecord(ctx context.Context, rec *model.Record) error {
	prepare(rec, time.Now().UTC())
	dataJSON, typoJSON, err := marshalDocs(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, sqliteUpsertRecord,
		rec.ID, rec.CampaignID, string(dataJSON), nullString(typoJSON), rec.CreatedAt, rec.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert record %s", rec.ID)
}

// InsertRecords upserts recs in a single transaction.
func (s *SQLiteStore) InsertRecords(ctx context.Context, recs []model.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertRecord)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare record upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for i := range recs {
		rec := &recs[i]
		prepare(rec, now)
		dataJSON, typoJSON, err := marshalDocs(rec)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.CampaignID, string(dataJSON), nullString(typoJSON), rec.CreatedAt, rec.UpdatedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert record %s", rec.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit records")
	}
	return int64(len(recs)), nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT id, campaign_id, data, typo, created_at, updated_at FROM records WHERE 1=1`
	var args []any

	if filter.CampaignID != "" {
		query += ` AND campaign_id = ?`
		args = append(args, filter.CampaignID)
	}
	if filter.CompanyID != "" {
		query += ` AND campaign_id IN (SELECT id FROM campaigns WHERE company_id = ?)`
		args = append(args, filter.CompanyID)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at, id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close() //nolint:errcheck

	recs := []model.Record{}
	for rows.Next() {
		var (
			rec      model.Record
			dataJSON string
			typoJSON sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.CampaignID, &dataJSON, &typoJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		if err := unmarshalDocs(&rec, []byte(dataJSON), []byte(typoJSON.String)); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func marshalDocs(rec *model.Record) (data, typo []byte, err error) {
	data, err = json.Marshal(rec.Data)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "store: marshal data of %s", rec.ID)
	}
	if rec.Typo != nil {
		typo, err = json.Marshal(rec.Typo)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "store: marshal typo of %s", rec.ID)
		}
	}
	return data, typo, nil
}

func unmarshalDocs(rec *model.Record, data, typo []byte) error {
	if err := json.Unmarshal(data, &rec.Data); err != nil {
		return eris.Wrapf(err, "store: unmarshal data of %s", rec.ID)
	}
	if len(typo) > 0 {
		if err := json.Unmarshal(typo, &rec.Typo); err != nil {
			return eris.Wrapf(err, "store: unmarshal typo of %s", rec.ID)
		}
	}
	return nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
