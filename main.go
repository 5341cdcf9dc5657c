// Package main provides the meetsync CLI entry point.
// meetsync archives cloud meeting recordings as Markdown: it fetches
// recordings and AI summaries from the meeting platform, normalizes them,
// extracts action items, and writes them into a date-organized archive.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetsync/cmd"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "meetsync",
	Short: "Archive cloud meeting recordings as Markdown",
	Long: `meetsync ingests meeting recordings and AI summaries from the meeting
platform's API and archives them as Markdown files with YAML frontmatter.

Each meeting is processed exactly once: a state file tracks the fetch
boundary and every archived meeting, so repeated or overlapping runs never
produce duplicates.

GETTING STARTED:
  1. Create ~/.meetsync/config.yaml with your account_id, client_id,
     user_id, and output_dir.
  2. Store the client secret:   meetsync auth login
  3. Verify credentials:        meetsync auth status
  4. Archive new meetings:      meetsync run
  5. Inspect progress:          meetsync status

Schedule 'meetsync run' with cron or a systemd timer for continuous
archiving.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(cmd.RunCmd)
	rootCmd.AddCommand(cmd.StatusCmd)
	rootCmd.AddCommand(cmd.AuditCmd)
	rootCmd.AddCommand(cmd.AuthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
