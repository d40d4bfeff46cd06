package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/policy-rag/internal/app"
	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

var (
	addTitle    string
	addContent  string
	addFile     string
	addCategory string
	addAsync    bool

	showJSON  bool
	statsJSON bool
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a policy document",
	Long: `Chunks, embeds and stores a document. Content comes from --content or
--file. With --async the document is queued for the worker instead.`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a policy document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a policy document",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List document categories",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

var departmentsCmd = &cobra.Command{
	Use:   "departments",
	Short: "List departments and the categories they own",
	Args:  cobra.NoArgs,
	RunE:  runDepartments,
}

func init() {
	addCmd.Flags().StringVarP(&addTitle, "title", "t", "", "document title")
	addCmd.Flags().StringVar(&addContent, "content", "", "document content")
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "read content from a file")
	addCmd.Flags().StringVarP(&addCategory, "category", "c", "", "document category")
	addCmd.Flags().BoolVar(&addAsync, "async", false, "queue the document for the worker")
	rootCmd.AddCommand(addCmd)

	showCmd.Flags().BoolVar(&showJSON, "json", false, "output the document as JSON")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(deleteCmd, showCmd, statsCmd, categoriesCmd, departmentsCmd)
}

func runAdd(cmd *cobra.Command, _ []string) error {
	content := addContent
	if addFile != "" {
		if content != "" {
			return errors.New("use either --content or --file, not both")
		}
		data, err := os.ReadFile(addFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", addFile, err)
		}
		content = string(data)
	}

	req := domain.AddDocumentRequest{
		Title:    addTitle,
		Content:  content,
		Category: addCategory,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if addAsync {
			taskID, err := a.Ingestion.Enqueue(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to queue document: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued task %s\n", taskID)
			return nil
		}

		id, err := a.RAG.AddDocument(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to add document: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added document %d\n", id)
		return nil
	})
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", arg)
	}
	return id, nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.RAG.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("failed to delete document %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted document %d\n", id)
		return nil
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		doc, err := a.RAG.GetDocument(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get document %d: %w", id, err)
		}
		if showJSON {
			return printJSON(cmd, doc)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", doc.Title)
		fmt.Fprintf(out, "Category: %s\n", doc.Category)
		if dept := doc.Department(); dept != "" {
			fmt.Fprintf(out, "Department: %s\n", dept)
		}
		fmt.Fprintf(out, "Created: %s\n\n", doc.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintln(out, doc.Content)
		return nil
	})
}

func runStats(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		stats, err := a.RAG.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		if statsJSON {
			return printJSON(cmd, stats)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Documents:\t%d\n", stats.Documents)
		fmt.Fprintf(w, "Chunks:\t%d\n", stats.Chunks)
		fmt.Fprintf(w, "Categories:\t%s\n", strings.Join(stats.Categories, ", "))
		fmt.Fprintf(w, "Encoder:\t%s (%d dims, fallback %t)\n", stats.EncoderModel, stats.EncoderDimension, stats.EncoderFallback)
		generator := "unavailable"
		if stats.GeneratorAvailable {
			generator = stats.GeneratorModel
		}
		fmt.Fprintf(w, "Generator:\t%s\n", generator)
		fmt.Fprintf(w, "Similarity threshold:\t%.2f\n", stats.SimilarityThreshold)
		return w.Flush()
	})
}

func runCategories(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		categories, err := a.RAG.Categories(ctx)
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}
		for _, c := range categories {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	})
}

func runDepartments(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, name := range domain.DepartmentNames() {
		d, _ := domain.LookupDepartment(name)
		fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(d.Categories, ", "))
	}
	return w.Flush()
}
