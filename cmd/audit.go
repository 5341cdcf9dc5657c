package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetsync/config"
	"github.com/otherjamesbrown/meetsync/pkg/upstream"
)

var auditDays int

// AuditCmd compares the upstream meeting report against the archive.
var AuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Find past meetings missing from the archive",
	Long: `Compare the upstream's past-meeting report against the archive ledger
and list meetings that were held but never archived.

The report endpoint also returns meetings without cloud recordings, so some
gaps are expected; the listing helps spot meetings whose recordings were
deleted upstream before a run picked them up.

Examples:
  meetsync audit
  meetsync audit --days 90`,
	RunE: runAudit,
}

func init() {
	AuditCmd.Flags().IntVar(&auditDays, "days", 30, "How many days of meeting history to audit")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	client, err := newUpstreamClient(cfg, logger)
	if err != nil {
		return err
	}

	store := newStateStore(cfg, logger)
	if err := store.Load(); err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	now := time.Now().UTC()
	window, err := upstream.NewDateWindow(now.AddDate(0, 0, -auditDays), now)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	refs, err := client.ListMeetingReports(ctx, cfg.Upstream.UserID, window)
	if err != nil {
		return fmt.Errorf("listing meeting reports: %w", err)
	}

	var missing []upstream.MeetingRef
	for _, ref := range refs {
		if !store.IsProcessed(ref.UUID) {
			missing = append(missing, ref)
		}
	}

	fmt.Printf("Upstream reports %d meetings in the last %d days; %d archived, %d not archived\n",
		len(refs), auditDays, len(refs)-len(missing), len(missing))
	for _, ref := range missing {
		fmt.Printf("  %s  %s  %s\n",
			ref.StartTime.Format("2006-01-02 15:04"), ref.UUID, ref.Topic)
	}
	return nil
}
