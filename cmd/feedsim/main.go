// Command feedsim drives the deterministic event-sourced feed simulator:
// schema init, simulate, replay, KPI reporting, and raw event inspection.
package main

import (
	"os"

	"github.com/rodolfodpk/feedsim/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
