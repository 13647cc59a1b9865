// Package agent — клиент к XRPC API сети Bluesky (AT Protocol).
//
// Включает:
//   - agent.go  — интерфейс Agent и хелперы для записей
//   - client.go — HTTP клиент: сессия, bearer token, rate limit
//   - errors.go — XRPCError и маппинг HTTP статусов в категории ошибок
//
// Шаги сценария работают только через интерфейс Agent,
// поэтому в тестах используется agenttest.Fake.
package agent
