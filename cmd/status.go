package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetsync/config"
	"github.com/otherjamesbrown/meetsync/pkg/state"
)

var statusJSON bool

// StatusCmd reports archive state without touching the upstream.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive state and last run outcome",
	Long: `Display the persisted run state: the fetch boundary, how many meetings
are archived, and how the last run ended.

Examples:
  meetsync status
  meetsync status --json`,
	RunE: runStatusCmd,
}

func init() {
	StatusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit the full state as JSON")
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	store := state.NewStore(cfg.StatePath, time.Duration(cfg.LookbackDays)*24*time.Hour, nil)
	if err := store.Load(); err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	snap := store.Snapshot()

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Printf("State file:       %s\n", cfg.StatePath)
	fmt.Printf("Fetch boundary:   %s\n", snap.LastFetchTimestamp.Format(time.RFC3339))
	fmt.Printf("Archived:         %d meetings\n", len(snap.ProcessedEntries))
	if snap.Statistics.LastRunStatus != "" {
		fmt.Printf("Last run:         %s at %s\n",
			snap.Statistics.LastRunStatus,
			snap.Statistics.LastRunAt.Format(time.RFC3339))
	} else {
		fmt.Println("Last run:         never")
	}
	if snap.Statistics.ConsecutiveFailures > 0 {
		fmt.Printf("Failures in a row: %d\n", snap.Statistics.ConsecutiveFailures)
	}
	return nil
}
