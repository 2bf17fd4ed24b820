package stats

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/mobility-stats/internal/model"
	"github.com/sells-group/mobility-stats/internal/record"
)

// Timestamp columns read by Campaign.
const (
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
)

const weekLayout = "2006-01-02"

// Campaign summarises participation in a campaign: record counts and, per
// week ending on Sunday, the records created and the records completed.
// Completion is dated by the last update of completed records.
func (e *Engine) Campaign(c model.Campaign, t record.Table) *model.CampaignStats {
	cs := &model.CampaignStats{
		Name:        c.Name,
		CompanyID:   c.CompanyID,
		CampaignID:  c.ID,
		NbEmployees: c.NbEmployees,
		Weekly:      []model.WeeklyStats{},
	}
	if len(t) == 0 {
		return cs
	}
	done := record.Completed(t)
	cs.TotalRecords = len(t)
	cs.CompletedRecords = len(done)

	created := weeklyCounts(t, CreatedAtField)
	completed := weeklyCounts(done, UpdatedAtField)

	first, last, ok := span(created, completed)
	if !ok {
		return cs
	}
	for w := first; !w.After(last); w = w.AddDate(0, 0, 7) {
		cs.Weekly = append(cs.Weekly, model.WeeklyStats{
			Week:      w.Format(weekLayout),
			Created:   created[w],
			Completed: completed[w],
		})
	}

	e.log.Debug("stats: campaign computed",
		zap.String("campaign_id", c.ID),
		zap.Int("records", cs.TotalRecords),
		zap.Int("completed", cs.CompletedRecords),
		zap.Int("weeks", len(cs.Weekly)),
	)
	return cs
}

// weekEnding returns the Sunday closing the week of ts, as a UTC date.
func weekEnding(ts time.Time) time.Time {
	ts = ts.UTC()
	d := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, (7-int(d.Weekday()))%7)
}

func weeklyCounts(t record.Table, col string) map[time.Time]int {
	out := map[time.Time]int{}
	for _, r := range t {
		if ts, ok := r.Time(col); ok {
			out[weekEnding(ts)]++
		}
	}
	return out
}

func span(ms ...map[time.Time]int) (first, last time.Time, ok bool) {
	for _, m := range ms {
		for w := range m {
			if !ok || w.Before(first) {
				first = w
			}
			if !ok || w.After(last) {
				last = w
			}
			ok = true
		}
	}
	return first, last, ok
}
