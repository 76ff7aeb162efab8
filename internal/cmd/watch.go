package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clipforge/vidsync/internal/observability"
	"github.com/clipforge/vidsync/pkg/events"
	"github.com/clipforge/vidsync/pkg/feed"
	"github.com/clipforge/vidsync/pkg/task"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch tasks until they settle",
	Long: `Poll the first page of tasks and print transitions as they happen.

Polling follows the feed's adaptive schedule: it runs while any task on
the page is still queued or processing and stops once every task has
reached a terminal state. Interrupt with Ctrl-C to stop earlier.

Example:
  vidsync watch
  vidsync watch --status processing --interval 2s`,
	RunE: runWatch,
}

var (
	watchStatus   string
	watchSearch   string
	watchInterval time.Duration
	watchForever  bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchStatus, "status", "", "Filter by status")
	watchCmd.Flags().StringVar(&watchSearch, "q", "", "Search by title substring or exact id")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Poll interval (default from config)")
	watchCmd.Flags().BoolVar(&watchForever, "forever", false, "Keep watching after all tasks settle")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	api, err := apiClient()
	if err != nil {
		return err
	}
	defer api.Close()

	interval := cfg.Feed.PollInterval
	if watchInterval > 0 {
		interval = watchInterval
	}

	bus := events.NewBus()
	unsubscribe := bus.Subscribe(func(e events.Event) {
		switch ev := e.(type) {
		case events.TaskProgress:
			fmt.Printf("%s  %s  progress %d%%\n", stamp(), ev.ID, ev.Progress)
		case events.TaskCompleted:
			fmt.Printf("%s  %s  completed  %s\n", stamp(), ev.Record.ID, ev.Record.VideoURL)
		case events.TaskFailed:
			fmt.Printf("%s  %s  failed: %s\n", stamp(), ev.ID, ev.Message)
		case events.SyncError:
			fmt.Printf("%s  sync error: %v\n", stamp(), ev.Err)
		}
	})
	defer unsubscribe()

	f := feed.New(api, feed.Config{
		Query: task.Query{
			Status: task.Status(watchStatus),
			Search: watchSearch,
		},
		PollInterval:   interval,
		PollWhenHidden: cfg.Feed.PollWhenHidden,
		CacheTTL:       cfg.Feed.CacheTTL,
		Reporter:       bus,
		Logger:         observability.CLILogger.Named("feed"),
	})
	defer f.Close()

	if err := f.Start(ctx); err != nil {
		return err
	}

	snap := f.Snapshot()
	fmt.Printf("%s  watching %d task(s)\n", stamp(), len(snap.Records))
	for _, rec := range snap.Records {
		fmt.Printf("%s  %s  %s  %d%%\n", stamp(), rec.ID, rec.Status, rec.Progress)
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("stopped")
			return nil
		case <-ticker.C:
			if !watchForever && !f.IsPolling() {
				observability.CLILogger.Debug("all tasks settled",
					zap.Int("records", len(f.Snapshot().Records)))
				fmt.Printf("%s  all tasks settled\n", stamp())
				return nil
			}
		}
	}
}

func stamp() string {
	return time.Now().Format("15:04:05")
}
