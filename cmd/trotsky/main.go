// Trotsky — запуск сценариев для Bluesky из YAML файлов.
//
// Использование:
//
//	trotsky [--json] [--dry-run] [--source jetstream|redis|amqp] <command> [flags]
//
// Команды:
//
//	run       Выполнить сценарий один раз
//	validate  Проверить файлы сценариев
//	schedule  Запускать сценарии по расписанию
//	relay     Пересылать Jetstream в Redis или RabbitMQ
//
// Настройки читаются из окружения: BSKY_SERVICE, BSKY_IDENTIFIER,
// BSKY_PASSWORD, BSKY_RATE_LIMIT, JETSTREAM_URL, REDIS_URL, RABBITMQ_URL,
// DB_URL, METRICS_PORT, LOG_LEVEL, LOG_FORMAT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/pirhoo/trotsky-sub000/internal/cli"
	"github.com/pirhoo/trotsky-sub000/internal/config"
	"github.com/pirhoo/trotsky-sub000/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts cli.Options

	logger := telemetry.SetupLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	rootCmd := &cobra.Command{
		Use:           "trotsky",
		Short:         "Trotsky — Bluesky automation scenarios",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "Skip mutating calls (follow, like, post...)")
	rootCmd.PersistentFlags().StringVar(&opts.Source, "source", cli.SourceJetstream, "Stream source: jetstream, redis or amqp")

	cfgFn := config.Load
	depsFn := func(ctx context.Context) (*cli.Deps, error) {
		cfg, err := cfgFn()
		if err != nil {
			return nil, err
		}
		return cli.Open(ctx, cfg, logger, metrics, opts)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(opts.JSON) }

	cfg, err := cfgFn()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	srv := cli.ServerConfig{
		Addr:            cfg.MetricsAddr(),
		Gatherer:        reg,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}

	rootCmd.AddCommand(
		cli.NewRunCmd(depsFn, outputFn),
		cli.NewValidateCmd(outputFn),
		cli.NewScheduleCmd(depsFn, outputFn, srv),
		cli.NewRelayCmd(cfgFn, depsFn),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
