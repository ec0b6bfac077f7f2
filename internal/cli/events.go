package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rodolfodpk/feedsim/pkg/feed"
)

var (
	eventsLimit int
	eventsType  string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print raw events from the log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if eventsType != "" && !feed.ValidKind(feed.Kind(eventsType)) {
			return newUsageError("unknown event type %q", eventsType)
		}

		ctx := cmd.Context()
		store, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		it, err := store.Scan(ctx, 1)
		if err != nil {
			fatalf("events failed: %v", err)
			return err
		}
		defer it.Close()

		printed := 0
		for {
			if eventsLimit > 0 && printed >= eventsLimit {
				break
			}
			ev, ok, err := it.Next(ctx)
			if err != nil {
				fatalf("events failed: %v", err)
				return err
			}
			if !ok {
				break
			}
			if eventsType != "" && string(ev.Kind) != eventsType {
				continue
			}
			printEvent(cmd, ctx, ev)
			printed++
		}
		return nil
	},
}

func printEvent(cmd *cobra.Command, _ context.Context, ev feed.Event) {
	cmd.Printf(
		"%s seq=%d tick=%d op_id=%s %s\n",
		color.MagentaString(string(ev.Kind)),
		ev.Seq, ev.Tick, ev.OpID, string(ev.Payload),
	)
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 0, "maximum number of events to print (0 = unlimited)")
	eventsCmd.Flags().StringVar(&eventsType, "event-type", "", "filter to one event kind")
}
