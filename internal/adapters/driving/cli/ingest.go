package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/policy-rag/internal/app"
)

var (
	seedAsync bool

	ingestCategory string

	watchPattern  string
	watchCategory string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the built-in policy documents",
	Long: `Loads the predefined policies when the store is empty. Concurrent
seeders are serialised by a distributed lock when one is configured.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [glob]",
	Short: "Ingest policy files matching a glob",
	Long: `Normalises and adds every file matching a doublestar glob, e.g.
"policies/**/*.md". Markdown, HTML and plain text are supported. Without
--category the category is the file's directory name.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest policy files as they change",
	Long: `Watches a directory and re-ingests matching files when they are
created or modified, replacing the previous version. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	seedCmd.Flags().BoolVar(&seedAsync, "async", false, "queue seeding for the worker")
	ingestCmd.Flags().StringVarP(&ingestCategory, "category", "c", "", "category for every file")
	watchCmd.Flags().StringVarP(&watchPattern, "pattern", "p", "", "doublestar pattern relative to dir (default from config)")
	watchCmd.Flags().StringVarP(&watchCategory, "category", "c", "", "category for every file")
	rootCmd.AddCommand(seedCmd, ingestCmd, watchCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if seedAsync {
			taskID, err := a.Ingestion.EnqueueSeed(ctx)
			if err != nil {
				return fmt.Errorf("failed to queue seeding: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued task %s\n", taskID)
			return nil
		}

		added, err := a.Ingestion.SeedPolicies(ctx)
		if err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d documents\n", added)
		return nil
	})
}

func runIngest(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		ids, err := a.Ingestion.IngestGlob(ctx, args[0], ingestCategory)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents\n", len(ids))
		return nil
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		pattern := watchPattern
		if pattern == "" {
			pattern = a.Config.Ingestion.WatchPattern
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for %s\n", args[0], pattern)
		return a.Ingestion.Watch(ctx, args[0], pattern, watchCategory)
	})
}
