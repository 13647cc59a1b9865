// Package repo хранит историю запусков в PostgreSQL.
//
// Таблицы (schema.sql, создаются Migrate):
//   - scenario_runs — один запуск сценария
//   - step_results  — итог каждого шага запуска
//
// Репозитории принимают DB, которому удовлетворяет *pgxpool.Pool.
package repo
