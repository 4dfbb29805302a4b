package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asteroid-belt/skillsync/internal/app"
	"github.com/asteroid-belt/skillsync/internal/config"
)

var pullCmd = &cobra.Command{
	Use:     "pull",
	Aliases: []string{"p"},
	Short:   "Refresh all collections from the backend (alias: p)",
	Long: `Refresh all collections from the backend, bypassing cache freshness.

Replays any pending offline changes first so the refresh cannot clobber
local edits, then force-fetches skills, projects and resources.

Examples:
  # Bring the local cache fully up to date
  skillsync pull`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

func runPull(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return trackCLIError("pull", fmt.Errorf("load config: %w", err))
	}

	a, err := app.New(cfg)
	if err != nil {
		return trackCLIError("pull", err)
	}
	defer func() { _ = a.Close() }()

	if pending := a.Queue.Status().PendingCount; pending > 0 {
		fmt.Printf("Pushing %d pending change(s) first...\n", pending)
		if err := a.Queue.Flush(ctx); err != nil {
			fmt.Printf("  some changes could not be sent: %v\n", err)
		}
	}

	skills, err := a.Cache.FetchSkills(ctx, true)
	if err != nil {
		return trackCLIError("pull", err)
	}
	projects, err := a.Cache.FetchProjects(ctx, true)
	if err != nil {
		return trackCLIError("pull", err)
	}
	resources, err := a.Cache.FetchResources(ctx, true)
	if err != nil {
		return trackCLIError("pull", err)
	}

	fmt.Printf("Pulled %d skill(s), %d project(s), %d resource(s)\n",
		len(skills), len(projects), len(resources))

	return nil
}
