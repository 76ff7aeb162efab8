package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clipforge/vidsync/internal/observability"
	"github.com/clipforge/vidsync/pkg/mutation"
	"github.com/clipforge/vidsync/pkg/task"
	"github.com/clipforge/vidsync/pkg/transport"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a video task",
	Long: `Submit a new video generation task.

A fresh idempotency key is generated per invocation unless one is
supplied. Retrying with the same key and payload returns the original
task instead of creating a duplicate.

Example:
  vidsync create --title "Harbor at dawn" --prompt "wide shot of the harbor"
  vidsync create --title "Retry me" --prompt "same" --idempotency-key idem-abc`,
	RunE: runCreate,
}

var (
	createTitle  string
	createPrompt string
	createKey    string
	createJSON   bool
)

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createTitle, "title", "", "Task title (required)")
	createCmd.Flags().StringVar(&createPrompt, "prompt", "", "Generation prompt (required)")
	createCmd.Flags().StringVar(&createKey, "idempotency-key", "", "Reuse a key to retry safely")
	createCmd.Flags().BoolVar(&createJSON, "json", false, "Emit the created task as JSON")

	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("prompt")
}

func runCreate(cmd *cobra.Command, args []string) error {
	req := task.CreateRequest{Title: createTitle, Prompt: createPrompt}
	if err := req.Validate(); err != nil {
		return err
	}

	key := createKey
	if key == "" {
		key = mutation.GenerateKey()
	}

	api, err := apiClient()
	if err != nil {
		return err
	}
	defer api.Close()

	rec, err := api.CreateRecord(cmd.Context(), req, key)
	if err != nil {
		if transport.IsIdempotencyConflict(err) {
			return fmt.Errorf("idempotency key %s was already used with a different payload", key)
		}
		return err
	}

	observability.CLILogger.Info("task created",
		zap.String("id", rec.ID),
		zap.String("idempotency_key", key))

	if createJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	fmt.Printf("created %s (%s)\n", rec.ID, rec.Status)
	fmt.Printf("idempotency key: %s\n", key)
	return nil
}
