// Package fetcher loads survey records from JSON arrays and flattened CSV
// exports, either from local files or over HTTP.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/mobility-stats/internal/record"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh   chan<- []string // optional: receives the header row
	Comment    rune            // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool

	// TextColumns are kept as strings by LoadCSVTable even when they look
	// numeric. Nil means just record.VersionField.
	TextColumns []string
}

// StreamCSV reads CSV rows and sends them to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // exports drop trailing empty cells

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			row, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range row {
					row[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- row:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// LoadCSVTable reads a flattened export whose header holds dotted paths
// ("data.freq_mod_car", "typo.reco.reco_dt2.0", ...). Empty cells are left
// out of the row, numeric cells become float64 and text is NFC normalised.
func LoadCSVTable(ctx context.Context, r io.Reader, opts CSVOptions) (record.Table, error) {
	opts.HasHeader = true
	headerCh := make(chan []string, 1)
	opts.HeaderCh = headerCh

	rowCh, errCh := StreamCSV(ctx, r, opts)

	text := opts.TextColumns
	if text == nil {
		text = []string{record.VersionField}
	}

	var (
		header []string
		table  = record.Table{}
	)
	for cells := range rowCh {
		if header == nil {
			header = normalizeHeader(<-headerCh)
		}
		row := make(record.Row, len(cells))
		for i, cell := range cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v, ok := csvValue(cell, slices.Contains(text, header[i])); ok {
				row[header[i]] = v
			}
		}
		table = append(table, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "csv: load table")
	}
	return table, nil
}

func normalizeHeader(h []string) []string {
	out := make([]string, len(h))
	for i, col := range h {
		col = strings.TrimSpace(col)
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		out[i] = norm.NFC.String(col)
	}
	return out
}

func csvValue(cell string, text bool) (any, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil, false
	}
	if !text && decimal(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return norm.NFC.String(s), true
}

// decimal rejects exponents, NaN and Inf so that identifiers such as H3
// cells never turn into numbers.
func decimal(s string) bool {
	return strings.Trim(s, "0123456789.+-") == "" && strings.ContainsAny(s, "0123456789")
}
