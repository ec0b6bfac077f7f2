package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rodolfodpk/feedsim/pkg/feed"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild every projection table from the event log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := feed.ReplayAll(ctx, store); err != nil {
			fatalf("replay failed: %v", err)
			return err
		}
		cmd.Println(color.GreenString("replay complete"))
		return nil
	},
}
