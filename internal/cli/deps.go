package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pirhoo/trotsky-sub000/internal/agent"
	"github.com/pirhoo/trotsky-sub000/internal/config"
	"github.com/pirhoo/trotsky-sub000/internal/domain"
	"github.com/pirhoo/trotsky-sub000/internal/engine"
	"github.com/pirhoo/trotsky-sub000/internal/mq"
	"github.com/pirhoo/trotsky-sub000/internal/repo"
	"github.com/pirhoo/trotsky-sub000/internal/steps"
	"github.com/pirhoo/trotsky-sub000/internal/stream"
	"github.com/pirhoo/trotsky-sub000/internal/telemetry"
)

// Источники стрима для --source.
const (
	SourceJetstream = "jetstream"
	SourceRedis     = "redis"
	SourceAMQP      = "amqp"
)

// Options — глобальные флаги CLI.
type Options struct {
	JSON   bool
	DryRun bool
	Source string
}

// Deps — всё, что нужно для выполнения сценариев.
//
// Runs, Steps и Events опциональны: nil означает, что
// соответствующая переменная окружения не задана.
type Deps struct {
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Agent   agent.Agent
	Source  engine.Source
	DryRun  bool

	Runs   *repo.RunRepo
	Steps  *repo.StepRepo
	Events *mq.Publisher

	closers []func()
}

// Close освобождает соединения в обратном порядке.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// Open подключает агента, источник стрима, БД и RabbitMQ по конфигурации.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics, opts Options) (*Deps, error) {
	d := &Deps{Logger: logger, Metrics: metrics, DryRun: opts.DryRun}

	if cfg.HasCredentials() {
		client, err := agent.Login(ctx, cfg.Service, cfg.Identifier, cfg.Password, agent.WithRateLimit(cfg.RateLimit, 1))
		if err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		d.Agent = client
		logger.Info("logged in", "did", client.DID(), "service", cfg.Service)
	} else {
		logger.Warn("BSKY_IDENTIFIER/BSKY_PASSWORD not set, running without a session")
	}

	var conn *mq.Connection
	if cfg.RabbitMQURL != "" {
		c, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		d.closers = append(d.closers, func() { _ = c.Close() })
		if err := mq.SetupTopology(ctx, c); err != nil {
			d.Close()
			return nil, fmt.Errorf("rabbitmq topology: %w", err)
		}
		conn = c
		d.Events = mq.NewPublisher(c, logger)
	}

	src, err := d.openSource(cfg, opts.Source, conn)
	if err != nil {
		d.Close()
		return nil, err
	}
	if src != nil {
		d.Source = telemetry.CountingSource(src, metrics)
	}

	if cfg.DBURL != "" {
		pool, err := repo.NewPool(ctx, cfg.DBURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		if err := repo.Migrate(ctx, pool); err != nil {
			d.Close()
			return nil, err
		}
		d.Runs = repo.NewRunRepo(pool)
		d.Steps = repo.NewStepRepo(pool)
	}

	return d, nil
}

// openSource создаёт источник стрима по имени.
func (d *Deps) openSource(cfg *config.Config, name string, conn *mq.Connection) (engine.Source, error) {
	switch name {
	case "", SourceJetstream:
		js := stream.NewJetstream(cfg.JetstreamURL, domain.CollectionPost, domain.CollectionFollow, domain.CollectionLike)
		js.Logger = d.Logger
		return js, nil
	case SourceRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("--source=redis requires REDIS_URL")
		}
		r, err := stream.NewRedisFromURL(cfg.RedisURL, "")
		if err != nil {
			return nil, err
		}
		r.Logger = d.Logger
		d.closers = append(d.closers, func() { _ = r.Close() })
		return r, nil
	case SourceAMQP:
		if conn == nil {
			return nil, errors.New("--source=amqp requires RABBITMQ_URL")
		}
		return mq.NewSource(conn, d.Logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q (jetstream, redis, amqp)", name)
	}
}

// Execute выполняет один запуск сценария.
//
// Подключает логирование, метрики, журнал шагов и события,
// записывает итог в run. Ошибки журнала и событий только логируются.
func (d *Deps) Execute(ctx context.Context, run *domain.Run, root *engine.Step) error {
	logger := telemetry.WithRunID(telemetry.WithScenario(d.Logger, run.Scenario), run.ID.String())
	telemetry.Instrument(root, logger, d.Metrics)

	if d.DryRun {
		root.SetConfig(steps.ConfigDryRun, true)
		run.DryRun = true
	}
	if d.Source != nil {
		root.WithSource(d.Source)
	}
	if d.Runs != nil {
		if err := d.Runs.Create(ctx, run); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
		root.Use(&repo.StepLog{Repo: d.Steps, RunID: run.ID, Logger: logger})
	}
	if d.Events != nil {
		root.Use(&mq.EventHooks{Publisher: d.Events, Logger: logger})
	}

	logger.Info("scenario started", "dry_run", run.DryRun)
	_, err := root.Run(telemetry.WithLogger(ctx, logger))
	run.Finish(err)

	if d.Metrics != nil {
		d.Metrics.ObserveRun(run.Scenario, err)
	}
	if d.Runs != nil {
		// ctx может быть уже отменён, итог всё равно нужно записать
		if ferr := d.Runs.Finish(context.WithoutCancel(ctx), run); ferr != nil {
			logger.Warn("failed to record run result", "error", ferr)
		}
	}
	if d.Events != nil {
		if perr := mq.PublishRun(context.WithoutCancel(ctx), d.Events, run); perr != nil {
			logger.Warn("failed to publish run result", "error", perr)
		}
	}

	if err != nil {
		logger.Error("scenario failed", "error", err, "duration_ms", run.Duration().Milliseconds())
		return err
	}
	logger.Info("scenario completed", "duration_ms", run.Duration().Milliseconds())
	return nil
}
