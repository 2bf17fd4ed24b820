package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/mobility-stats/internal/model"
)

func sampleStats() *model.Stats {
	sum := 12
	return &model.Stats{
		Total: 3,
		Frequencies: []model.Frequencies{
			{Field: "travel_time", Total: 3, Data: []model.Frequency{{Value: "30", Count: 2}}},
		},
		ModeFrequencies: []model.Frequencies{
			{Field: "car", Total: 3, Data: []model.Frequency{{Value: "4", Count: 3, Sum: &sum}}},
		},
		ModeEmissions: []model.Emissions{
			{Mode: "car", Total: 3, Distances: 120.5, Journeys: 990, Emissions: 2154.321},
		},
		RecoModeEmissions:      []model.Emissions{},
		ModeEmissionReductions: []model.EmissionReductions{{Mode: "car", Total: 3, Reduced: 812.4}},
		ModeLinks:              model.Links{Total: 3, Data: []model.Link{{Source: "car", Target: "covoit", Value: 2}}},
		ProFrequencies:         []model.Frequencies{},
		ProModeFrequencies:     []model.Frequencies{},
		ProModeEmissions:       []model.Emissions{},
		RecoProModeEmissions:   []model.Emissions{},
		ProModeLinks:           model.Links{Data: []model.Link{}},
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{" xlsx ", FormatXLSX, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleStats()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.InDelta(t, 3, doc["total"], 0)
	assert.Equal(t, []any{}, doc["reco_mode_emissions"])

	mf := doc["mode_frequencies"].([]any)[0].(map[string]any)
	bin := mf["data"].([]any)[0].(map[string]any)
	assert.InDelta(t, 12, bin["sum"], 0)
	freq := doc["frequencies"].([]any)[0].(map[string]any)
	_, hasSum := freq["data"].([]any)[0].(map[string]any)["sum"]
	assert.False(t, hasSum)
}

func TestWriteYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, sampleStats()))

	var back model.Stats
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, 3, back.Total)
	assert.Equal(t, "covoit", back.ModeLinks.Data[0].Target)
	require.NotNil(t, back.ModeFrequencies[0].Data[0].Sum)
	assert.Equal(t, 12, *back.ModeFrequencies[0].Data[0].Sum)
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleStats()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	names := make([]string, 0, len(f.Sheets))
	for _, sh := range f.Sheets {
		names = append(names, sh.Name)
	}
	assert.Equal(t, []string{
		"summary", "frequencies", "mode_frequencies", "mode_emissions", "reco_mode_emissions",
		"mode_emission_reductions", "mode_links", "pro_frequencies", "pro_mode_frequencies",
		"pro_mode_emissions", "reco_pro_mode_emissions", "pro_mode_links",
	}, names)

	em := f.Sheet["mode_emissions"]
	require.Len(t, em.Rows, 2)
	assert.Equal(t, "mode", em.Rows[0].Cells[0].String())
	assert.Equal(t, "car", em.Rows[1].Cells[0].String())
	assert.Equal(t, "990", em.Rows[1].Cells[3].String())

	mf := f.Sheet["mode_frequencies"]
	require.Len(t, mf.Rows, 2)
	assert.Equal(t, "12", mf.Rows[1].Cells[4].String())

	assert.Len(t, f.Sheet["reco_mode_emissions"].Rows, 1)
}

func TestWriteCampaignXLSX(t *testing.T) {
	t.Parallel()

	c := &model.CampaignStats{
		Name: "Spring", CampaignID: "c1", CompanyID: "acme", NbEmployees: 120,
		TotalRecords: 3, CompletedRecords: 2,
		Weekly: []model.WeeklyStats{{Week: "2024-03-10", Created: 2}, {Week: "2024-03-17", Created: 1, Completed: 2}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, c))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	wk := f.Sheet["weekly"]
	require.NotNil(t, wk)
	require.Len(t, wk.Rows, 3)
	assert.Equal(t, "2024-03-17", wk.Rows[2].Cells[0].String())
	assert.Equal(t, "2", wk.Rows[2].Cells[2].String())
}

func TestWriteDispatch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, map[string]int{"total": 1}))
	assert.Equal(t, "total: 1\n", buf.String())

	err := Write(&buf, FormatXLSX, map[string]int{"total": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx does not support")

	assert.Error(t, Write(&buf, Format("toml"), nil))
}
