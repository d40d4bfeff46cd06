package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/policy-rag/internal/app"
	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/postprocessors"
)

const snippetLength = 120

var (
	askDepartment  string
	askCategory    string
	askTopK        int
	askNoGenerator bool
	askJSON        bool

	searchCategory string
	searchTopK     int
	searchJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a policy question",
	Long: `Retrieves the most relevant policy excerpts and composes an answer.
Use --department to favour the policies a department owns.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search policy excerpts",
	Long:  `Lists the policy chunks most similar to the query, best first.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	askCmd.Flags().StringVarP(&askDepartment, "department", "d", "", "department to focus on (see 'departments')")
	askCmd.Flags().StringVarP(&askCategory, "category", "c", "", "restrict to one category")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of excerpts to consult (0 = default)")
	askCmd.Flags().BoolVar(&askNoGenerator, "no-generator", false, "always use the template answer")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the response as JSON")
	rootCmd.AddCommand(askCmd)

	searchCmd.Flags().StringVarP(&searchCategory, "category", "c", "", "restrict to one category")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "maximum number of results (0 = default)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		a.Seed(ctx)

		resp, err := a.RAG.Ask(ctx, args[0], domain.AskOptions{
			TopK:         askTopK,
			Category:     askCategory,
			Department:   askDepartment,
			UseGenerator: !askNoGenerator,
		})
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}

		if askJSON {
			return printJSON(cmd, resp)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, resp.Answer)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Confidence: %.2f (%s)\n", resp.Confidence, resp.AnswerSource)
		if len(resp.Sources) > 0 {
			fmt.Fprintln(out, "Sources:")
			printResults(out, resp.Sources)
		}
		return nil
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		a.Seed(ctx)

		results, err := a.RAG.SearchDocuments(ctx, args[0], domain.SearchOptions{
			TopK:     searchTopK,
			Category: searchCategory,
		})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if searchJSON {
			return printJSON(cmd, results)
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No results found.")
			return nil
		}
		fmt.Fprintln(out, "Results:")
		printResults(out, results)
		return nil
	})
}

func printResults(out io.Writer, results []domain.SearchResult) {
	for i, r := range results {
		if r.Document == nil {
			continue
		}
		// Format: [N] Title (category) score
		fmt.Fprintf(out, "  [%d] %s (%s) %.3f\n", i+1, r.Document.Title, r.Document.Category, r.RelevanceScore)
		if r.Chunk != nil {
			fmt.Fprintf(out, "      %s\n", postprocessors.Excerpt(r.Chunk.Text, snippetLength))
		}
	}
}
