// Package telemetry обеспечивает наблюдаемость сценариев.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//   - hooks.go   — хуки BeforeStep/AfterStep для логов и метрик
//
// Подключение:
//
//	m := telemetry.NewMetrics(nil)
//	telemetry.Instrument(root, logger, m)
package telemetry
