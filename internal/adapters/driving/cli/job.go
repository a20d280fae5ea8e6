package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and continue import jobs",
}

var jobStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show the progress of an import job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobStatus,
}

var jobContinueCmd = &cobra.Command{
	Use:   "continue [job-id]",
	Short: "Run the next batch of a paused import job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobContinue,
}

func init() {
	jobCmd.AddCommand(jobStatusCmd)
	jobCmd.AddCommand(jobContinueCmd)
	rootCmd.AddCommand(jobCmd)
}

func runJobStatus(cmd *cobra.Command, args []string) error {
	if importService == nil {
		return errors.New("import service not configured")
	}
	return printJob(cmd.Context(), cmd, args[0])
}

func runJobContinue(cmd *cobra.Command, args []string) error {
	if importService == nil {
		return errors.New("import service not configured")
	}

	result, err := importService.Continue(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("continue failed: %w", err)
	}
	printImportRun(cmd, result)
	return printJob(cmd.Context(), cmd, result.JobID)
}
