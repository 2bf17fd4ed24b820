package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes how staged rows are merged into a table.
type UpsertConfig struct {
	Table        string   // may be schema-qualified
	Columns      []string // column order of each row
	ConflictKeys []string
	UpdateCols   []string // nil updates every column outside ConflictKeys
}

// BulkUpsert merges rows into cfg.Table in one transaction. Rows are copied
// into a staging table dropped on commit, then moved with a single
// INSERT ... ON CONFLICT DO UPDATE, so re-importing a survey export
// overwrites records that share an id instead of failing.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	staging := stagingTable(cfg.Table)
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		quote(staging), sanitizeTable(cfg.Table),
	)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", cfg.Table)
	}

	if _, err := CopyFrom(ctx, tx, staging, cfg.Columns, rows); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy staged rows for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, mergeStatement(cfg, staging))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// stagingTable names the per-transaction copy of table.
func stagingTable(table string) string {
	return "stage_" + strings.ReplaceAll(table, ".", "_")
}

func mergeStatement(cfg UpsertConfig, staging string) string {
	cols := quoteAndJoin(cfg.Columns)

	set := make([]string, 0, len(cfg.Columns))
	for _, c := range updateColumns(cfg) {
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", quote(c), quote(c)))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(cfg.Table), cols, cols, quote(staging),
		quoteAndJoin(cfg.ConflictKeys), strings.Join(set, ", "),
	)
}

func updateColumns(cfg UpsertConfig) []string {
	if cfg.UpdateCols != nil {
		return cfg.UpdateCols
	}
	var out []string
	for _, c := range cfg.Columns {
		if !slices.Contains(cfg.ConflictKeys, c) {
			out = append(out, c)
		}
	}
	return out
}

// sanitizeTable quotes a table name such as "survey.records".
func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}
