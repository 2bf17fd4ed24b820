package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-stats/internal/model"
	"github.com/sells-group/mobility-stats/internal/report"
	"github.com/sells-group/mobility-stats/internal/store"
)

var (
	campaignFormat string
	campaignOutput string
	newCampaign    model.Campaign
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage survey campaigns",
}

var campaignStatsCmd = &cobra.Command{
	Use:   "stats <campaign-id>",
	Short: "Participation summary of a campaign, with weekly counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("campaign"); err != nil {
			return err
		}
		return runCampaignStats(cmd.Context(), args[0], campaignFormat, campaignOutput)
	},
}

var campaignCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create or update a campaign",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("campaign"); err != nil {
			return err
		}
		c := newCampaign
		if err := createCampaign(cmd.Context(), &c); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), c.ID)
		return err
	},
}

func runCampaignStats(ctx context.Context, id, formatName, output string) error {
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	c, err := st.GetCampaign(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "get campaign %s", id)
	}
	recs, err := st.ListRecords(ctx, store.RecordFilter{CampaignID: id})
	if err != nil {
		return eris.Wrapf(err, "list records of %s", id)
	}

	cs := newEngine().Campaign(*c, store.Table(recs))

	out, err := openOutput(output)
	if err != nil {
		return err
	}
	if err := report.Write(out, format, cs); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(out.Close(), "close output")
}

func createCampaign(ctx context.Context, c *model.Campaign) error {
	if c.Name == "" {
		return eris.New("campaign name is required (--name)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := st.InsertCampaign(ctx, c); err != nil {
		return eris.Wrap(err, "insert campaign")
	}
	zap.L().Info("campaign saved", zap.String("campaign_id", c.ID), zap.String("name", c.Name))
	return nil
}

func init() {
	campaignStatsCmd.Flags().StringVar(&campaignFormat, "format", "json", "output format: json, yaml or xlsx")
	campaignStatsCmd.Flags().StringVarP(&campaignOutput, "output", "o", "-", "output file, - for stdout")

	f := campaignCreateCmd.Flags()
	f.StringVar(&newCampaign.ID, "id", "", "campaign id (generated when empty)")
	f.StringVar(&newCampaign.Name, "name", "", "campaign name (required)")
	f.StringVar(&newCampaign.CompanyID, "company-id", "", "owning company")
	f.StringVar(&newCampaign.URL, "url", "", "survey URL")
	f.IntVar(&newCampaign.NbEmployees, "nb-employees", 0, "number of employees surveyed")

	campaignCmd.AddCommand(campaignStatsCmd, campaignCreateCmd)
	rootCmd.AddCommand(campaignCmd)
}
