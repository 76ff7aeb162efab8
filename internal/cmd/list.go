package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clipforge/vidsync/pkg/task"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List video tasks",
	Long: `List one page of video tasks from the API.

Pass the printed next-cursor back via --cursor to fetch the following
page. Cursors are bound to the filters that produced them.

Example:
  vidsync list
  vidsync list --status processing --limit 10
  vidsync list --q "sunset" --sort createdAt_asc --pages 3
  vidsync list --cursor eyJjcmVhdGVkQXQi...`,
	RunE: runList,
}

var (
	listStatus string
	listSearch string
	listSort   string
	listLimit  int
	listCursor string
	listPages  int
	listJSON   bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (queued|processing|completed|failed|cancelled)")
	listCmd.Flags().StringVar(&listSearch, "q", "", "Search by title substring or exact id")
	listCmd.Flags().StringVar(&listSort, "sort", "", "Sort order (createdAt_desc|createdAt_asc)")
	listCmd.Flags().IntVar(&listLimit, "limit", task.DefaultLimit, "Page size (1-100)")
	listCmd.Flags().StringVar(&listCursor, "cursor", "", "Resume from a previous page's next-cursor")
	listCmd.Flags().IntVar(&listPages, "pages", 1, "Number of consecutive pages to fetch (0 = all)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Emit raw pages as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	api, err := apiClient()
	if err != nil {
		return err
	}
	defer api.Close()

	q := task.Query{
		Status: task.Status(listStatus),
		Search: listSearch,
		Sort:   listSort,
		Limit:  listLimit,
		Cursor: listCursor,
	}.Normalized()

	var last *task.Page
	for fetched := 0; listPages == 0 || fetched < listPages; fetched++ {
		page, err := api.FetchPage(cmd.Context(), q)
		if err != nil {
			return err
		}
		last = page

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(page); err != nil {
				return err
			}
		} else {
			printPage(page)
		}

		if page.NextCursor == "" {
			break
		}
		q.Cursor = page.NextCursor
	}

	if !listJSON && last != nil && last.NextCursor != "" {
		fmt.Printf("next cursor: %s\n", last.NextCursor)
	}
	return nil
}

func printPage(page *task.Page) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tTITLE\tCREATED")
	for _, rec := range page.Data {
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\n",
			rec.ID, rec.Status, rec.Progress, rec.Title,
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()

	fmt.Printf("%d task(s)\n\n", len(page.Data))
}
