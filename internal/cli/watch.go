package cli

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/asteroid-belt/skillsync/internal/app"
	"github.com/asteroid-belt/skillsync/internal/config"
	"github.com/asteroid-belt/skillsync/internal/models"
	"github.com/asteroid-belt/skillsync/internal/notify"
)

// qualityTracker reports each quality transition exactly once. Safe for
// concurrent use.
type qualityTracker struct {
	mu   sync.Mutex
	last models.Quality
}

func (t *qualityTracker) changed(q models.Quality) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q == t.last {
		return false
	}
	t.last = q
	return true
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the sync engine in the foreground",
	Long: `Run the sync engine in the foreground until interrupted.

Probes the backend on its regular interval, replays queued changes as
connectivity allows, and prints sync events as they happen.

Examples:
  # Keep a terminal syncing while you work elsewhere
  skillsync watch`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return trackCLIError("watch", fmt.Errorf("load config: %w", err))
	}

	a, err := app.New(cfg)
	if err != nil {
		return trackCLIError("watch", err)
	}
	defer func() { _ = a.Close() }()

	unsubscribe := a.Notifier.Subscribe(func(n notify.Notification) {
		var style lipgloss.Style
		switch n.Level {
		case notify.LevelSuccess:
			style = goodStyle
		case notify.LevelError:
			style = offlineStyle
		default:
			style = dimStyle
		}
		fmt.Printf("%s %s\n", dimStyle.Render(n.Time.Format("15:04:05")), style.Render(n.Message))
	})
	defer unsubscribe()

	// Track quality transitions; steady-state polls stay quiet. Queue
	// listeners fire from timer goroutines, so the tracker locks.
	var quality qualityTracker
	a.Queue.Subscribe(func(status models.SyncStatus) {
		if q := a.Monitor.Quality(); quality.changed(q) {
			telemetryClient.TrackConnectionChanged(string(q), a.Monitor.BackendReachable())
		}
	})

	fmt.Printf("Watching %s (probe every %s, Ctrl-C to stop)\n", cfg.API.BaseURL, cfg.Sync.ProbeInterval)
	a.Run(ctx)
	fmt.Println("\nStopping; unsent changes are saved for next time.")

	return nil
}
