package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rodolfodpk/feedsim/pkg/feed"
	"github.com/rodolfodpk/feedsim/pkg/kpi"
)

var kpisJSONOutput bool

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "Report Gini coefficient and Shannon entropy over current projections",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		var report kpi.Report
		err = store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			r, err := kpi.Compute(ctx, store, tx)
			if err != nil {
				return err
			}
			report = r
			return nil
		})
		if err != nil {
			fatalf("kpis failed: %v", err)
			return err
		}

		if kpisJSONOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		cmd.Println(color.CyanString("posts:            ") + fmt.Sprintf("%d", report.PostCount))
		cmd.Println(color.CyanString("timelines served: ") + fmt.Sprintf("%d", report.TimelinesServed))
		cmd.Println(color.CyanString("gini (up_votes):  ") + fmt.Sprintf("%.4f", report.GiniUpVotes))
		cmd.Println(color.CyanString("shannon entropy:  ") + fmt.Sprintf("%.4f bits", report.ShannonEntropy))
		return nil
	},
}

func init() {
	kpisCmd.Flags().BoolVar(&kpisJSONOutput, "json-output", false, "emit the report as JSON instead of colored text")
}
