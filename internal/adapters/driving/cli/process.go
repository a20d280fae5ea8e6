package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

var processCmd = &cobra.Command{
	Use:   "process [document-id]",
	Short: "Split, summarise and tag one document",
	Long: `Run the enrichment stages on a document and mark it processed. Stages
that already produced output are skipped unless forced. Without a force
flag an already processed document is left alone.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep [app-id]",
	Short: "Process every unprocessed document of a tenant",
	Long: `Run the enrichment stages over a tenant's unprocessed documents in
batches. With a force flag every document of the tenant is visited.`,
	Args: cobra.ExactArgs(1),
	RunE: runSweep,
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed chunks that have no embedding",
	RunE:  runEmbed,
}

var (
	processForce domain.ProcessingOptions
	sweepForce   domain.ProcessingOptions
	embedLimit   int
)

func addForceFlags(fs *pflag.FlagSet, opts *domain.ProcessingOptions) {
	fs.BoolVar(&opts.ForceSplit, "force-split", false, "Re-split even if chunks exist")
	fs.BoolVar(&opts.ForceSummarize, "force-summarize", false, "Rewrite the summary even if one exists")
	fs.BoolVar(&opts.ForceTag, "force-tag", false, "Re-tag even if tags exist")
}

func init() {
	addForceFlags(processCmd.Flags(), &processForce)
	addForceFlags(sweepCmd.Flags(), &sweepForce)
	embedCmd.Flags().IntVarP(&embedLimit, "limit", "n", 0, "Maximum chunks to embed (0 = all)")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(embedCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if processService == nil {
		return errors.New("processor not configured")
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	result, err := processService.Process(cmd.Context(), id, processForce)
	if errors.Is(err, domain.ErrNotFoundOrProcessed) {
		cmd.Printf("Document %d not found or already processed.\n", id)
		return nil
	}
	var failure *domain.StageFailure
	if errors.As(err, &failure) {
		return fmt.Errorf("%s stage failed: %s", failure.Stage, failure.Cause())
	}
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	cmd.Println(title(fmt.Sprintf("Document %d", id)))
	cmd.Println(field("Split", outcome(result.Split)))
	cmd.Println(field("Summarize", outcome(result.Summarize)))
	cmd.Println(field("Tag", outcome(result.Tag)))
	cmd.Println(field("Chunks", strconv.Itoa(result.Chunks)))
	cmd.Println(field("Tags", strconv.Itoa(result.Tags)))
	cmd.Println(field("Processed", yesNo(result.Processed)))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	if sweepService == nil {
		return errors.New("sweep service not configured")
	}

	cmd.Printf("Sweeping %s...\n", args[0])
	result, err := sweepService.Sweep(cmd.Context(), args[0], sweepForce)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	cmd.Printf("Swept %d documents: %d processed, %d failed.\n",
		result.Eligible, result.Processed, result.Failed)
	return nil
}

func runEmbed(cmd *cobra.Command, _ []string) error {
	if backfillService == nil {
		return errors.New("embedding backfill not configured")
	}

	result, err := backfillService.Backfill(cmd.Context(), embedLimit)
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return errors.New("no embedding provider configured (set embedding.api-key)")
	}
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	cmd.Printf("Embedded %d chunks (%d failed).\n", result.Embedded, result.Failed)
	return nil
}
