package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

var importCmd = &cobra.Command{
	Use:   "import [app-id]",
	Short: "Import conversations for a tenant",
	Long: `Import the tenant's Intercom conversations as documents. Conversations
that are already stored are skipped.

Each invocation fetches a bounded number of pages. With the in-memory queue
the command keeps continuing the job until it finishes; with the Redis queue
the continuation is handed to a running 'threadline serve'.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var (
	importUser         string
	importLimit        int
	importCreatedAfter string
	importResume       bool
	importWait         bool
)

func init() {
	importCmd.Flags().StringVarP(&importUser, "user", "u", "cli", "User recorded as the creator of imported documents")
	importCmd.Flags().IntVarP(&importLimit, "limit", "n", 0, "Stop after examining this many conversations (0 = all)")
	importCmd.Flags().StringVar(&importCreatedAfter, "created-after", "",
		"Only import conversations created at or after this time (RFC 3339, date or unix seconds)")
	importCmd.Flags().BoolVar(&importResume, "resume", false, "Start from the tenant's saved cursor")
	importCmd.Flags().BoolVar(&importWait, "wait", true, "Keep continuing the job until it finishes")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if importService == nil {
		return errors.New("import service not configured")
	}

	req := domain.ImportRequest{
		AppID:  args[0],
		UserID: importUser,
		Limit:  importLimit,
		Resume: importResume,
	}
	if importCreatedAfter != "" {
		t, err := domain.ParseTime(importCreatedAfter)
		if err != nil {
			return err
		}
		req.CreatedAfter = &t
	}

	ctx := cmd.Context()
	cmd.Printf("Importing conversations for %s...\n", req.AppID)

	result, err := importService.Import(ctx, req)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	printImportRun(cmd, result)

	queued := currentApp != nil && currentApp.Queue != nil
	for importWait && !queued && result.Status == domain.JobPaused {
		result, err = importService.Continue(ctx, result.JobID)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		printImportRun(cmd, result)
	}

	if result.Status == domain.JobPaused {
		if queued {
			cmd.Printf("Continuation of %s queued.\n", result.JobID)
		} else {
			cmd.Printf("Resume with: threadline job continue %s\n", result.JobID)
		}
		return nil
	}

	return printJob(ctx, cmd, result.JobID)
}

func printImportRun(cmd *cobra.Command, r *domain.ImportResult) {
	cmd.Printf("  %s pages=%d processed=%d skipped=%d failed=%d\n",
		status(r.Status), r.Pages, r.Processed, r.Skipped, r.Failed)
}

func printJob(ctx context.Context, cmd *cobra.Command, jobID string) error {
	job, err := importService.Job(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	cmd.Println()
	cmd.Println(title("Import job " + job.ID))
	cmd.Println(field("App", job.AppID))
	cmd.Println(field("Status", status(job.Status)))
	cmd.Println(field("Processed", strconv.Itoa(job.Processed)))
	cmd.Println(field("Skipped", strconv.Itoa(job.Skipped)))
	cmd.Println(field("Failed", strconv.Itoa(job.Failed)))
	if job.Error != "" {
		cmd.Println(field("Error", errorStyle.Render(job.Error)))
	}
	return nil
}
