package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-stats/internal/fetcher"
)

var (
	importSource     string
	importCampaignID string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import survey records from a JSON export into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		n, err := runImport(cmd.Context(), importSource, importCampaignID)
		if err != nil {
			return err
		}
		zap.L().Info("import complete",
			zap.Int64("records", n),
			zap.String("source", importSource),
		)
		return nil
	},
}

// runImport loads records from source and upserts them. A non-empty
// campaignID overrides the campaign of every record.
func runImport(ctx context.Context, source, campaignID string) (int64, error) {
	recs, err := fetcher.LoadRecords(ctx, newFetcher(), source)
	if err != nil {
		return 0, eris.Wrapf(err, "load %s", source)
	}
	if campaignID != "" {
		for i := range recs {
			recs[i].CampaignID = campaignID
		}
	}

	st, err := initStore(ctx)
	if err != nil {
		return 0, err
	}
	defer st.Close() //nolint:errcheck

	n, err := st.InsertRecords(ctx, recs)
	if err != nil {
		return 0, eris.Wrap(err, "insert records")
	}
	return n, nil
}

func init() {
	importCmd.Flags().StringVar(&importSource, "file", "", "JSON export to import, path or URL (required)")
	importCmd.Flags().StringVar(&importCampaignID, "campaign-id", "", "assign every record to this campaign")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
