package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pirhoo/trotsky-sub000/internal/engine"
	"github.com/pirhoo/trotsky-sub000/internal/scenario"
	"github.com/pirhoo/trotsky-sub000/internal/scheduler"
)

// ServerConfig — адрес и реестр метрик для служебного HTTP сервера.
type ServerConfig struct {
	Addr            string
	Gatherer        prometheus.Gatherer
	ShutdownTimeout time.Duration
}

// NewScheduleCmd создаёт команду `schedule FILE...`.
//
// Каждый файл должен содержать schedule. Сценарий заново читается
// с диска перед каждым запуском.
func NewScheduleCmd(depsFn DepsFunc, outputFn func() *Output, srv ServerConfig) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "schedule FILE...",
		Short: "Run scenario files on their cron schedules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := depsFn(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			sched := scheduler.New(scheduler.Config{
				Runner:   deps.Execute,
				Logger:   deps.Logger,
				Interval: interval,
			})
			for _, file := range args {
				if err := sched.AddScenario(fileBuilder(file, deps)); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
			}

			entries := sched.Entries()
			headers := []string{"NAME", "SCHEDULE", "NEXT RUN"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{e.Name, e.CronExpr, e.NextDueAt.Format(time.RFC3339)}
			}
			outputFn().Print(headers, rows, entries)

			errc := make(chan error, 1)
			go func() { errc <- Serve(ctx, srv, deps.Logger) }()

			if err := sched.Run(ctx); err != nil {
				return err
			}
			return <-errc
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", scheduler.DefaultTickInterval, "How often to check schedules")
	return cmd
}

// fileBuilder читает и собирает сценарий из файла.
func fileBuilder(file string, deps *Deps) scheduler.Builder {
	return func() (*engine.Step, error) {
		doc, err := scenario.ParseFile(file)
		if err != nil {
			return nil, err
		}
		return scenario.Build(doc, deps.Agent)
	}
}

// NewMux возвращает обработчики /healthz и /metrics.
func NewMux(g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve обслуживает /healthz и /metrics до отмены ctx.
func Serve(ctx context.Context, cfg ServerConfig, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewMux(cfg.Gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
