// Package cmd implements the vidsync CLI.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clipforge/vidsync/internal/config"
	"github.com/clipforge/vidsync/internal/observability"
	"github.com/clipforge/vidsync/pkg/transport/httpapi"
)

// versionInfo holds build metadata injected via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata, typically from -ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)",
		versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
}

var (
	flagConfig   string
	flagAPIURL   string
	flagToken    string
	flagLogLevel string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vidsync",
	Short: "Sync client for the video-task API",
	Long: `vidsync keeps a local view of remote video generation tasks in sync:
cursor pagination, adaptive polling while tasks are in flight, and
idempotent task creation with optimistic placeholders.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if flagAPIURL != "" {
			overrides["api"] = map[string]any{"base_url": flagAPIURL}
		}
		if flagToken != "" {
			api, _ := overrides["api"].(map[string]any)
			if api == nil {
				api = map[string]any{}
			}
			api["token"] = flagToken
			overrides["api"] = api
		}
		if flagLogLevel != "" {
			overrides["logging"] = map[string]any{"level": flagLogLevel}
		}

		loaded, err := config.LoadFrom(cmd.Context(), flagConfig, overrides)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		if err := observability.Init(cfg.Logging); err != nil {
			return err
		}
		observability.CLILogger.Debug("configuration loaded",
			zap.String("api_url", cfg.API.BaseURL),
			zap.Duration("poll_interval", cfg.Feed.PollInterval))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ./vidsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Bearer token for the API")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
}

// apiClient builds a transport client from the loaded config.
func apiClient() (*httpapi.Client, error) {
	return httpapi.New(httpapi.Config{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
	})
}

// Execute runs the CLI. It returns the process exit code.
func Execute(ctx context.Context) int {
	defer observability.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
