package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"document", "docs"},
	Short:   "Inspect imported documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list [app-id]",
	Short: "List documents of a tenant",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsList,
}

var documentsGetCmd = &cobra.Command{
	Use:   "get [document-id]",
	Short: "Show a document with its summary, tags and participants",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsGet,
}

var (
	listUnprocessed bool
	listLimit       int
	getContent      bool
)

func init() {
	documentsListCmd.Flags().BoolVar(&listUnprocessed, "unprocessed", false, "Only list documents that still need enrichment")
	documentsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum documents to list")
	documentsGetCmd.Flags().BoolVarP(&getContent, "content", "c", false, "Print the markdown body")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsGetCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(cmd.Context(), args[0], listUnprocessed, listLimit)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Printf("No documents found for %s\n", args[0])
		return nil
	}

	cmd.Println(title(fmt.Sprintf("Documents for %s (%d)", args[0], len(docs))))
	for i := range docs {
		d := &docs[i]
		marker := successStyle.Render("✓")
		if !d.Processed {
			marker = warningStyle.Render("•")
		}
		cmd.Printf("%s %6d  %-12s %s\n", marker, d.ID, d.ExternalID, d.Name)
	}
	return nil
}

func runDocumentsGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	details, err := documentService.GetDetails(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	d := &details.Document

	tags := make([]string, len(details.Tags))
	for i, t := range details.Tags {
		tags[i] = t.Name
	}
	users := make([]string, len(details.EndUsers))
	for i, u := range details.EndUsers {
		users[i] = u.Email
	}

	cmd.Println(title(d.Name))
	cmd.Println(field("ID", strconv.FormatInt(d.ID, 10)))
	cmd.Println(field("App", d.AppID))
	cmd.Println(field("External ID", d.ExternalID))
	cmd.Println(field("Processed", yesNo(d.Processed)))
	cmd.Println(field("Chunks", fmt.Sprintf("%d (%d embedded)", details.ChunkCount, details.Embedded)))
	cmd.Println(field("Tags", orNone(strings.Join(tags, ", "))))
	cmd.Println(field("Users", orNone(strings.Join(users, ", "))))
	cmd.Println(field("Summary", orNone(d.SummaryText())))

	if getContent {
		cmd.Println()
		cmd.Println(d.Content)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return mutedStyle.Render("(none)")
	}
	return s
}
