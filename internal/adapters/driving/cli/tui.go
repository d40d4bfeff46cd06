package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/policy-rag/internal/adapters/driving/tui"
	"github.com/custodia-labs/policy-rag/internal/app"
)

var (
	tuiTopK        int
	tuiNoGenerator bool
	tuiStyle       string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Ask questions in an interactive terminal UI",
	Long: `Opens an interactive assistant. Type a question and press Enter;
Tab cycles the department the answers focus on.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().IntVarP(&tuiTopK, "top-k", "k", 0, "number of excerpts to consult (0 = default)")
	tuiCmd.Flags().BoolVar(&tuiNoGenerator, "no-generator", false, "always use the template answer")
	tuiCmd.Flags().StringVar(&tuiStyle, "style", "dark", "glamour style for answers (dark, light, notty)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		a.Seed(ctx)
		return tui.Run(ctx, a.RAG, tui.Options{
			TopK:         tuiTopK,
			UseGenerator: !tuiNoGenerator,
			Style:        tuiStyle,
		})
	})
}
