package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/policy-rag/internal/adapters/driving/http"
	"github.com/custodia-labs/policy-rag/internal/app"
	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

var (
	servePort   int
	serveWorker bool
	serveOrigin []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the question answering API. Seeds the predefined policies on
start when configured to. With --worker (or server.run_worker) a queue
worker runs in the same process; it requires Redis.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued ingestion tasks",
	Long:  `Runs the background ingestion worker until interrupted. Requires Redis.`,
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
	serveCmd.Flags().BoolVar(&serveWorker, "worker", false, "also run the queue worker")
	serveCmd.Flags().StringSliceVar(&serveOrigin, "cors-origin", []string{"*"}, "allowed CORS origins")
	rootCmd.AddCommand(serveCmd, workerCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		a.Seed(ctx)

		if serveWorker || a.Config.Server.RunWorker {
			w, err := a.NewWorker()
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("failed to start worker: %w", err)
			}
			defer w.Stop()
		}

		cfg := http.Config{
			Host:           a.Config.Server.Host,
			Port:           a.Config.Server.Port,
			Version:        version,
			ReadTimeout:    a.Config.Server.ReadTimeout(),
			WriteTimeout:   a.Config.Server.WriteTimeout(),
			AllowedOrigins: serveOrigin,
		}
		if servePort > 0 {
			cfg.Port = servePort
		}

		server := http.NewServer(cfg, a.RAG, a.Ingestion, checks(a), a.Logger)
		return server.Start(ctx)
	})
}

func runWorker(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		w, err := a.NewWorker()
		if err != nil {
			if errors.Is(err, domain.ErrServiceUnavailable) {
				return errors.New("the worker needs a task queue: set redis.url or REDIS_URL")
			}
			return err
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
		<-ctx.Done()
		w.Stop()
		return nil
	})
}

// checks adapts the app's readiness probes for the HTTP server.
func checks(a *app.App) map[string]http.Pinger {
	out := make(map[string]http.Pinger, len(a.Checks()))
	for _, c := range a.Checks() {
		out[c.Name] = http.PingFunc(c.Ping)
	}
	return out
}
