package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-stats/internal/fetcher"
	"github.com/sells-group/mobility-stats/internal/record"
	"github.com/sells-group/mobility-stats/internal/report"
	"github.com/sells-group/mobility-stats/internal/store"
)

type statsOptions struct {
	input      string
	campaignID string
	companyID  string
	since      string
	format     string
	output     string
}

var statsOpts statsOptions

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute mobility statistics from an export or the record store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("stats"); err != nil {
			return err
		}
		return runStats(cmd.Context(), statsOpts)
	},
}

func runStats(ctx context.Context, opts statsOptions) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	tbl, err := loadTable(ctx, opts)
	if err != nil {
		return err
	}

	s := newEngine().Compute(tbl)
	zap.L().Info("stats computed",
		zap.Int("records", len(tbl)),
		zap.Int("completed", s.Total),
		zap.String("format", string(format)),
	)

	out, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	if err := report.Write(out, format, s); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(out.Close(), "close output")
}

// loadTable reads the table from --input when set, otherwise from the store.
func loadTable(ctx context.Context, opts statsOptions) (record.Table, error) {
	if opts.input != "" {
		tbl, err := fetcher.LoadTable(ctx, newFetcher(), opts.input, store.Table)
		if err != nil {
			return nil, eris.Wrapf(err, "load %s", opts.input)
		}
		return tbl, nil
	}

	filter := store.RecordFilter{CampaignID: opts.campaignID, CompanyID: opts.companyID}
	if opts.since != "" {
		since, err := time.Parse(time.DateOnly, opts.since)
		if err != nil {
			return nil, eris.Wrap(err, "parse --since")
		}
		filter.Since = since
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck

	recs, err := st.ListRecords(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "list records")
	}
	return store.Table(recs), nil
}

func init() {
	f := statsCmd.Flags()
	f.StringVar(&statsOpts.input, "input", "", "JSON or CSV export (path or URL); reads the store when empty")
	f.StringVar(&statsOpts.campaignID, "campaign-id", "", "restrict to one campaign")
	f.StringVar(&statsOpts.companyID, "company-id", "", "restrict to the campaigns of one company")
	f.StringVar(&statsOpts.since, "since", "", "only records created on or after this date (YYYY-MM-DD)")
	f.StringVar(&statsOpts.format, "format", "json", "output format: json, yaml or xlsx")
	f.StringVarP(&statsOpts.output, "output", "o", "-", "output file, - for stdout")
	rootCmd.AddCommand(statsCmd)
}
