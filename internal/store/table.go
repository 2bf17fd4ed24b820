package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/mobility-stats/internal/model"
	"github.com/sells-group/mobility-stats/internal/record"
)

// Column names added next to the flattened documents.
const (
	IDField         = "id"
	CampaignIDField = "campaign_id"
	CreatedAtField  = "created_at"
	UpdatedAtField  = "updated_at"
)

// Table flattens records into the tabular view: Data under "data.", Typo
// under "typo.", plus the id, campaign and timestamp columns. Zero
// timestamps are left out.
func Table(recs []model.Record) record.Table {
	t := make(record.Table, 0, len(recs))
	for _, rec := range recs {
		row := record.FlattenPrefixed("data", rec.Data)
		for k, v := range record.FlattenPrefixed("typo", rec.Typo) {
			row[k] = v
		}
		if rec.ID != "" {
			row[IDField] = rec.ID
		}
		if rec.CampaignID != "" {
			row[CampaignIDField] = rec.CampaignID
		}
		if !rec.CreatedAt.IsZero() {
			row[CreatedAtField] = rec.CreatedAt.UTC().Format(time.RFC3339)
		}
		if !rec.UpdatedAt.IsZero() {
			row[UpdatedAtField] = rec.UpdatedAt.UTC().Format(time.RFC3339)
		}
		t = append(t, row)
	}
	return t
}

func newID() string {
	return uuid.New().String()
}
