// Package store persists survey campaigns and records, and serves the
// record tables the statistics engine consumes.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mobility-stats/internal/model"
)

// ErrNotFound is returned when a campaign does not exist.
var ErrNotFound = eris.New("store: not found")

// RecordFilter specifies criteria for listing records. Zero values match
// everything; Limit <= 0 returns every matching record.
type RecordFilter struct {
	CampaignID string    `json:"campaign_id,omitempty"`
	CompanyID  string    `json:"company_id,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	Offset     int       `json:"offset,omitempty"`
}

// RecordStore defines the persistence interface for survey data.
type RecordStore interface {
	// Records
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error)
	InsertRecord(ctx context.Context, rec *model.Record) error
	InsertRecords(ctx context.Context, recs []model.Record) (int64, error)

	// Campaigns
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	InsertCampaign(ctx context.Context, c *model.Campaign) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string, maxConns int32) (RecordStore, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, &PoolConfig{MaxConns: maxConns})
	}
	return nil, eris.Errorf("store: unknown driver %q", driver)
}

// prepare fills the id and timestamps of a record about to be written.
func prepare(rec *model.Record, now time.Time) {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
}
