package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-stats/internal/model"
	"github.com/sells-group/mobility-stats/internal/stats"
	"github.com/sells-group/mobility-stats/internal/store"
)

// memStore is an in-memory RecordStore.
type memStore struct {
	mu        sync.Mutex
	campaigns map[string]model.Campaign
	records   []model.Record
	pingErr   error
	listErr   error
	filters   []store.RecordFilter
}

func (m *memStore) ListRecords(_ context.Context, f store.RecordFilter) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, f)
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Record
	for _, r := range m.records {
		if f.CampaignID != "" && r.CampaignID != f.CampaignID {
			continue
		}
		if !f.Since.IsZero() && r.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) InsertRecord(_ context.Context, rec *model.Record) error {
	m.records = append(m.records, *rec)
	return nil
}

func (m *memStore) InsertRecords(_ context.Context, recs []model.Record) (int64, error) {
	m.records = append(m.records, recs...)
	return int64(len(recs)), nil
}

func (m *memStore) GetCampaign(_ context.Context, id string) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "mem: campaign %s", id)
	}
	return &c, nil
}

func (m *memStore) InsertCampaign(_ context.Context, c *model.Campaign) error {
	m.campaigns[c.ID] = *c
	return nil
}

func (m *memStore) Ping(context.Context) error    { return m.pingErr }
func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func newMemStore() *memStore {
	created := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	reco := func(code string) map[string]any {
		return map[string]any{"reco": map[string]any{"reco_dt2": []any{code}}}
	}
	return &memStore{
		campaigns: map[string]model.Campaign{
			"c1": {ID: "c1", CompanyID: "acme", Name: "Spring", NbEmployees: 40},
		},
		records: []model.Record{
			{ID: "r1", CampaignID: "c1", Data: map[string]any{"freq_mod_car": float64(4)}, Typo: reco("covoit"), CreatedAt: created, UpdatedAt: created},
			{ID: "r2", CampaignID: "c1", Data: map[string]any{"freq_mod_bike": float64(5)}, Typo: reco("velo"), CreatedAt: created.Add(48 * time.Hour), UpdatedAt: created.Add(48 * time.Hour)},
			{ID: "r3", CampaignID: "c1", Data: map[string]any{"freq_mod_car": float64(2)}, CreatedAt: created, UpdatedAt: created},
			{ID: "r4", CampaignID: "c2", Data: map[string]any{"freq_mod_car": float64(1)}, Typo: reco("tpu"), CreatedAt: created, UpdatedAt: created},
		},
	}
}

func newTestServer(t *testing.T, st *memStore, opts Options) *httptest.Server {
	t.Helper()
	engine := stats.NewEngine(stats.DefaultParams(), stats.WithLogger(zap.NewNop()))
	srv := httptest.NewServer(NewRouter(NewHandler(st, engine), opts))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestHealth(t *testing.T) {
	st := newMemStore()
	srv := newTestServer(t, st, Options{})

	var body map[string]string
	resp := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	st.pingErr = errors.New("down")
	resp = getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStats(t *testing.T) {
	st := newMemStore()
	srv := newTestServer(t, st, Options{})

	var s model.Stats
	resp := getJSON(t, srv.URL+"/stats?campaign_id=c1", &s)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.ModeLinks.Edge("car", "covoit"))
	assert.Equal(t, 1, s.ModeLinks.Edge("bike", "velo"))

	resp = getJSON(t, srv.URL+"/stats", &s)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, s.Total)
}

func TestStatsSince(t *testing.T) {
	st := newMemStore()
	srv := newTestServer(t, st, Options{})

	var s model.Stats
	resp := getJSON(t, srv.URL+"/stats?campaign_id=c1&since=2024-03-05", &s)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), st.filters[len(st.filters)-1].Since)

	resp = getJSON(t, srv.URL+"/stats?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsStoreError(t *testing.T) {
	st := newMemStore()
	st.listErr = errors.New("boom")
	srv := newTestServer(t, st, Options{})

	var body map[string]string
	resp := getJSON(t, srv.URL+"/stats", &body)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "failed to load records", body["error"])
}

func TestCampaignStats(t *testing.T) {
	srv := newTestServer(t, newMemStore(), Options{})

	var cs model.CampaignStats
	resp := getJSON(t, srv.URL+"/campaigns/c1/stats", &cs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Spring", cs.Name)
	assert.Equal(t, "acme", cs.CompanyID)
	assert.Equal(t, 40, cs.NbEmployees)
	assert.Equal(t, 3, cs.TotalRecords)
	assert.Equal(t, 2, cs.CompletedRecords)
	assert.NotEmpty(t, cs.Weekly)

	resp = getJSON(t, srv.URL+"/campaigns/missing/stats", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, newMemStore(), Options{RateLimit: 0.001, RateBurst: 1})

	resp := getJSON(t, srv.URL+"/stats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/stats", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	// Health is not rate limited.
	resp = getJSON(t, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, newMemStore(), Options{CORSOrigins: []string{"https://dashboard.example"}})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://dashboard.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, newMemStore(), Options{RateLimit: 0.001, RateBurst: 1})

	getJSON(t, srv.URL+"/campaigns/c1/stats", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mobility_stats_http_requests_total{route="/campaigns/{id}/stats",status="200"}`)
	assert.Contains(t, string(body), `mobility_stats_engine_records_total{endpoint="campaign"}`)
}
