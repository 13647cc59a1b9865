// Package cli реализует команды trotsky.
//
// # Команды
//
//   - run FILE         — выполнить сценарий один раз и вывести отчёт по шагам
//   - validate FILE... — проверить файлы сценариев без запуска
//   - schedule FILE... — запускать сценарии по их schedule, отдавать /healthz и /metrics
//   - relay --to X     — пересылать Jetstream в Redis или RabbitMQ
//
// # Зависимости
//
// Deps собирается из переменных окружения (internal/config):
// агент с сессией, источник стрима (--source), журнал в PostgreSQL (DB_URL)
// и события в RabbitMQ (RABBITMQ_URL). Deps.Execute — общий исполнитель
// для run и schedule.
//
// # Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения — в stderr.
// Это позволяет использовать pipe: trotsky run greeter.yaml --json | jq .
package cli
