package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asteroid-belt/skillsync/internal/app"
	"github.com/asteroid-belt/skillsync/internal/config"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send pending offline changes now",
	Long: `Send pending offline changes now, bypassing the debounce.

Changes that still fail keep their retry budget and stay queued for the
next attempt; changes that exhausted it are dropped with a notice.

Examples:
  # Flush the offline backlog
  skillsync push`,
	Args: cobra.NoArgs,
	RunE: runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return trackCLIError("push", fmt.Errorf("load config: %w", err))
	}

	a, err := app.New(cfg)
	if err != nil {
		return trackCLIError("push", err)
	}
	defer func() { _ = a.Close() }()

	before := a.Queue.Status().PendingCount
	if before == 0 {
		fmt.Println("Nothing to push.")
		return nil
	}

	fmt.Printf("Pushing %d pending change(s)...\n", before)
	flushErr := a.Queue.Flush(ctx)
	after := a.Queue.Status().PendingCount

	fmt.Printf("  ✓ %d sent, %d still pending\n", before-after, after)
	if flushErr != nil {
		return trackCLIError("push", fmt.Errorf("push incomplete: %w", flushErr))
	}
	return nil
}
