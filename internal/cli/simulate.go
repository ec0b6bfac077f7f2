package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rodolfodpk/feedsim/internal/agent"
	"github.com/rodolfodpk/feedsim/internal/config"
	"github.com/rodolfodpk/feedsim/pkg/feed"
)

var (
	simTicks   int
	simAgents  int
	simK       int
	simRanking string
	simSeed    int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulation: agents act against the kernel for N ticks",
	RunE: func(cmd *cobra.Command, args []string) error {
		algorithm := feed.Algorithm(simRanking)
		if !feed.ValidAlgorithm(algorithm) {
			return newUsageError("unknown ranking algorithm %q (want new, top, or hot)", simRanking)
		}
		if simTicks <= 0 || simAgents <= 0 || simK <= 0 {
			return newUsageError("--ticks, --agents, and --k must all be positive")
		}

		ctx := cmd.Context()
		store, metrics, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		runID, err := feed.StartRun(ctx, store, "simulate", simSeed, simAgents, simK, simTicks, algorithm)
		if err != nil {
			fatalf("start run failed: %v", err)
			return err
		}

		timelineSvc := feed.NewTimelineService(store, runID)
		admission := feed.NewAdmission(store, cfg.Admit.RatePerSec, cfg.Admit.Burst)
		clock := feed.NewClock(store)
		policy := agent.New(store, timelineSvc, admission, metrics, runID, simAgents, simK, algorithm)

		for tick := 0; tick < simTicks; tick++ {
			if err := policy.RunTick(ctx, simSeed, int64(tick)); err != nil {
				fatalf("simulation aborted at tick %d: %v", tick, err)
				return err
			}
			if _, err := clock.AdvanceTick(ctx); err != nil {
				fatalf("advance_tick failed: %v", err)
				return err
			}
		}

		cmd.Println(color.GreenString("simulation complete: run=%s ticks=%d agents=%d", runID, simTicks, simAgents))
		return nil
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 10, "number of ticks to simulate")
	simulateCmd.Flags().IntVar(&simAgents, "agents", 20, "number of agents")
	simulateCmd.Flags().IntVar(&simK, "k", 10, "timeline length")
	simulateCmd.Flags().StringVar(&simRanking, "ranking", "hot", "ranking algorithm: new, top, or hot")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "deterministic run seed")
}
