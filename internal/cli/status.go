package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/asteroid-belt/skillsync/internal/app"
	"github.com/asteroid-belt/skillsync/internal/config"
	"github.com/asteroid-belt/skillsync/internal/models"
)

var (
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	slowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	poorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C00"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection, queue and cache state",
	Long: `Show connection, queue and cache state.

Probes the backend once, then prints connection quality, the number of
pending offline changes per collection, and what is cached locally.

Examples:
  # Check where your data stands
  skillsync status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return trackCLIError("status", fmt.Errorf("load config: %w", err))
	}

	a, err := app.New(cfg)
	if err != nil {
		return trackCLIError("status", err)
	}
	defer func() { _ = a.Close() }()

	_, _ = a.Monitor.Check(ctx)
	state := a.Monitor.State()

	fmt.Println(headerStyle.Render("CONNECTION"))
	fmt.Printf("  Backend:  %s\n", cfg.API.BaseURL)
	fmt.Printf("  Quality:  %s", qualityStyle(state.Quality).Render(string(state.Quality)))
	if state.BackendReachable {
		fmt.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("(%dms)", state.Latency.Milliseconds())))
	} else {
		fmt.Printf("  %s\n", dimStyle.Render("(unreachable)"))
	}

	stats := a.Cache.Stats()

	fmt.Println()
	fmt.Println(headerStyle.Render("PENDING CHANGES"))
	if stats.Pending.PendingCount == 0 {
		fmt.Println("  Everything synced.")
	} else {
		for _, collection := range models.ValidCollections() {
			if n := stats.Pending.PerCollection[collection]; n > 0 {
				fmt.Printf("  %-10s %d\n", collection, n)
			}
		}
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("CACHE"))
	for _, collection := range models.ValidCollections() {
		fetched := "never"
		if t := stats.LastFetched[collection]; !t.IsZero() {
			fetched = formatTimeSince(t)
		}
		fmt.Printf("  %-10s %3d record(s), fetched %s\n", collection, stats.Records[collection], fetched)
	}
	fmt.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("store: %d bytes on disk", stats.StoreBytes)))

	return nil
}

func qualityStyle(q models.Quality) lipgloss.Style {
	switch q {
	case models.QualityGood:
		return goodStyle
	case models.QualitySlow:
		return slowStyle
	case models.QualityPoor:
		return poorStyle
	default:
		return offlineStyle
	}
}

// formatTimeSince formats a duration since a time in a human-readable way.
func formatTimeSince(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return t.Format("2006-01-02")
	}
}
