package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/pirhoo/trotsky-sub000/internal/engine"
)

// LoggerConfig — настройки логгера.
type LoggerConfig struct {
	Level  slog.Level
	Format string // "json" или "text"
	Output io.Writer
}

// ConfigFromEnv читает LOG_LEVEL и LOG_FORMAT. Логи пишутся в stderr,
// stdout остаётся для вывода CLI.
func ConfigFromEnv() LoggerConfig {
	return LoggerConfig{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: os.Getenv("LOG_FORMAT"),
		Output: os.Stderr,
	}
}

// ParseLevel разбирает DEBUG, INFO, WARN, ERROR (регистр не важен, допускается
// смещение вида "INFO+2"). Всё остальное — INFO.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger создаёт логгер. Формат по умолчанию — JSON.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.Level <= slog.LevelDebug,
	}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetupLogger создаёт логгер из окружения и делает его глобальным.
func SetupLogger() *slog.Logger {
	logger := NewLogger(ConfigFromEnv())
	slog.SetDefault(logger)
	return logger
}

type loggerKey struct{}

// WithLogger кладёт логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext возвращает логгер из контекста или slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := fromContext(ctx); ok {
		return logger
	}
	return slog.Default()
}

func fromContext(ctx context.Context) (*slog.Logger, bool) {
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return logger, ok && logger != nil
}

func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

func WithScenario(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("scenario", name)
}

// WithStep добавляет имя, id и путь шага.
func WithStep(logger *slog.Logger, step *engine.Step) *slog.Logger {
	return logger.With("step", step.Name(), "step_id", step.ID(), "path", step.String())
}
