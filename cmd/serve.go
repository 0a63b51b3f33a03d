package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bimmerbailey/cyro/internal/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [flags]",
	Short: "Expose the scoring model as an HTTP service",
	Long: `Run an HTTP service around a shared info model:

  GET  /healthz   liveness check
  POST /observe   fold a line into the model ({"line": "...", "level": "..."})
  POST /score     score a line without observing it
  GET  /stats     vocabulary and line counters
  GET  /metrics   Prometheus exposition of the model's counters

All handlers share one model behind an exclusive lock, so concurrent
observers and scorers see a consistent vocabulary.

Examples:
  cyro serve --addr :8080
  cyro serve --addr 127.0.0.1:9200 --state-in model.json --state-out model.json`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addScoringFlags(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "listen address")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	model := buildModel(cmd)
	svc := service.New(model)

	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", addr)

	var serveErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serveErr = err
		}
		<-errCh
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	stateOut, _ := cmd.Flags().GetString("state-out")
	maybeSaveModel(model, stateOut)
	printGuardrailSummary(model)

	return serveErr
}
