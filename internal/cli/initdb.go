package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rodolfodpk/feedsim/pkg/feed"
)

var initDBForce bool

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the event log and projection schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Init(ctx, initDBForce); err != nil {
			if feed.IsAlreadyInitialized(err) {
				cmd.Println(color.YellowString("schema already exists (use --force to drop and recreate)"))
				return nil
			}
			fatalf("init-db failed: %v", err)
			return err
		}
		cmd.Println(color.GreenString("schema initialized"))
		return nil
	},
}

func init() {
	initDBCmd.Flags().BoolVar(&initDBForce, "force", false, "drop existing schema before recreating it")
}
