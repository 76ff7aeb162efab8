package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipforge/vidsync/internal/observability"
	"github.com/clipforge/vidsync/internal/server"
	"github.com/clipforge/vidsync/pkg/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the in-memory dev API server",
	Long: `Run a local video-task API backed by an in-memory store.

Created tasks progress through a scripted lifecycle (queued, then
processing, then completed with a demo video URL), which makes the
server useful for exercising polling and pagination without a real
backend.

Example:
  vidsync serve
  vidsync serve --port 9000 --seed 25
  vidsync serve --processing-after 1s --complete-after 4s`,
	RunE: runServe,
}

var (
	serveHost            string
	servePort            int
	serveSeed            int
	serveProcessingAfter time.Duration
	serveCompleteAfter   time.Duration
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
	serveCmd.Flags().IntVar(&serveSeed, "seed", 0, "Pre-populate N completed tasks")
	serveCmd.Flags().DurationVar(&serveProcessingAfter, "processing-after", 0, "Delay before queued tasks start processing")
	serveCmd.Flags().DurationVar(&serveCompleteAfter, "complete-after", 0, "Delay before processing tasks complete")
}

func runServe(cmd *cobra.Command, args []string) error {
	host := cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	sim := server.SimConfig{
		ProcessingAfter: cfg.Server.ProcessingAfter,
		CompleteAfter:   cfg.Server.CompleteAfter,
	}
	if serveProcessingAfter > 0 {
		sim.ProcessingAfter = serveProcessingAfter
	}
	if serveCompleteAfter > 0 {
		sim.CompleteAfter = serveCompleteAfter
	}

	logger := observability.CLILogger.Named("server")
	store := server.NewStore(sim, logger)
	if serveSeed > 0 {
		store.Seed(seedRecords(serveSeed)...)
	}

	s := server.New(host, port, store, logger)
	fmt.Printf("dev server listening on http://%s\n", s.Addr())
	return s.ListenAndServe()
}

func seedRecords(n int) []task.Record {
	now := time.Now().UTC()
	records := make([]task.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, task.Record{
			ID:        fmt.Sprintf("vt_seed%04d", i),
			Title:     fmt.Sprintf("Seeded clip %d", i+1),
			Prompt:    "seeded demo task",
			Status:    task.StatusCompleted,
			Progress:  100,
			CreatedAt: now.Add(-time.Duration(n-i) * time.Minute),
		})
	}
	return records
}
