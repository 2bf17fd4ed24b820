package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mobility-stats/internal/model"
	"github.com/sells-group/mobility-stats/internal/record"
)

// Fetcher defines the interface for downloading remote exports.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Format of a record export.
type Format string

// Supported export formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// FormatOf guesses the export format from a path or URL extension.
func FormatOf(source string) (Format, error) {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		source = source[:i]
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", eris.Errorf("fetcher: unknown format for %q", source)
}

// Open returns a reader for a local path or, when source is an http(s)
// URL, for the body downloaded through f.
func Open(ctx context.Context, f Fetcher, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if f == nil {
			return nil, eris.Errorf("fetcher: no http fetcher for %s", source)
		}
		return f.Download(ctx, source)
	}
	file, err := os.Open(source)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open file")
	}
	return file, nil
}

// LoadRecords reads stored-record documents from a JSON export.
func LoadRecords(ctx context.Context, f Fetcher, source string) ([]model.Record, error) {
	format, err := FormatOf(source)
	if err != nil {
		return nil, err
	}
	if format != FormatJSON {
		return nil, eris.Errorf("fetcher: records can only be imported from json, got %s", format)
	}

	rc, err := Open(ctx, f, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	return LoadJSONRecords(ctx, rc)
}

// LoadTable reads a flattened table from a JSON or CSV export. flatten turns
// JSON records into rows.
func LoadTable(ctx context.Context, f Fetcher, source string, flatten func([]model.Record) record.Table) (record.Table, error) {
	format, err := FormatOf(source)
	if err != nil {
		return nil, err
	}

	rc, err := Open(ctx, f, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	if format == FormatCSV {
		return LoadCSVTable(ctx, rc, CSVOptions{TrimSpace: true})
	}
	recs, err := LoadJSONRecords(ctx, rc)
	if err != nil {
		return nil, err
	}
	return flatten(recs), nil
}
