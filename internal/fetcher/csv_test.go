package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mobility-stats/internal/record"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "a,b,c\n1,2,3\n4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, rows[2])
}

func TestStreamCSV_SemicolonWithHeader(t *testing.T) {
	input := "mode;count\ncar; 3 \n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"car", "3"}, rows[0])
	assert.Equal(t, []string{"mode", "count"}, <-headerCh)
}

func TestStreamCSV_ContextCancellation(t *testing.T) {
	var sb strings.Builder
	for range 10000 {
		sb.WriteString("a,b,c\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	assert.Error(t, err)
}

func TestStreamCSV_MalformedQuote(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a,\"b\nc"), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	assert.Error(t, err)
}

func TestLoadCSVTable(t *testing.T) {
	t.Parallel()

	input := "\ufeffdata.version,data.freq_mod_car,data.freq_mod_pro_journeys.0.hex_id,typo.reco.reco_dt2.0,data.equipments.0\n" +
		"2.0,3,871f1d489ffffff,covoit,v\u00e9lo\n" +
		"1.4,,,tpu\n"

	tbl, err := LoadCSVTable(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, tbl, 2)

	assert.Equal(t, record.Row{
		"data.version":                        "2.0",
		"data.freq_mod_car":                   float64(3),
		"data.freq_mod_pro_journeys.0.hex_id": "871f1d489ffffff",
		"typo.reco.reco_dt2.0":                "covoit",
		"data.equipments.0":                   "v\u00e9lo",
	}, tbl[0])
	assert.Equal(t, record.Row{
		"data.version":         "1.4",
		"typo.reco.reco_dt2.0": "tpu",
	}, tbl[1])

	parts := record.Partition(tbl, record.VersionField)
	assert.Len(t, parts.Journey, 1)
	assert.Len(t, parts.Legacy, 1)
}

func TestLoadCSVTable_NFC(t *testing.T) {
	t.Parallel()

	// "e" followed by a combining acute accent.
	input := "data.constraints.0\nte\u0301le\u0301travail\n"
	tbl, err := LoadCSVTable(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, tbl, 1)
	assert.Equal(t, "t\u00e9l\u00e9travail", tbl[0]["data.constraints.0"])
}

func TestLoadCSVTable_HeaderOnly(t *testing.T) {
	t.Parallel()

	tbl, err := LoadCSVTable(context.Background(), strings.NewReader("data.version\n"), CSVOptions{})
	require.NoError(t, err)
	assert.NotNil(t, tbl)
	assert.Empty(t, tbl)
}

func TestCSVValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		text   bool
		want   any
		wantOK bool
	}{
		{"", false, nil, false},
		{"   ", false, nil, false},
		{"12", false, float64(12), true},
		{"-0.5", false, -0.5, true},
		{"1e3", false, "1e3", true},
		{"NaN", false, "NaN", true},
		{"2.0", true, "2.0", true},
		{"car", false, "car", true},
	}
	for _, tt := range tests {
		got, ok := csvValue(tt.in, tt.text)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
