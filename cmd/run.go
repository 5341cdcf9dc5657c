package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetsync/config"
	"github.com/otherjamesbrown/meetsync/pkg/state"
)

var runTimeout time.Duration

// RunCmd executes one ingestion run.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch and archive new meetings",
	Long: `Fetch recordings and summaries since the last run, normalize them, and
write them into the Markdown archive.

The run is idempotent: already-archived meetings are skipped, and the fetch
boundary only advances once results are safely persisted. A scheduler (cron,
systemd timer) can invoke this on a cadence.

Examples:
  meetsync run
  meetsync run --timeout 10m`,
	RunE: runRun,
}

func init() {
	RunCmd.Flags().DurationVar(&runTimeout, "timeout", 15*time.Minute, "Abort the run after this long")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	p, _, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	res, err := p.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("run %s failed: %w", res.RunID, err)
	}

	fmt.Printf("Run %s: %s (%d processed, %d skipped, %d errored)\n",
		res.RunID, res.Status, res.Processed, res.Skipped, res.Errored)

	if res.Status == state.StatusFailure {
		return fmt.Errorf("run finished with status %s", res.Status)
	}
	return nil
}
