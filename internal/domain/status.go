package domain

// RunStatus — итог запуска сценария или отдельного шага.
//
//	RUNNING → SUCCEEDED
//	        ↘ FAILED
type RunStatus string

const (
	// RunStatusRunning — выполнение идёт.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — выполнение завершилось без ошибок.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — выполнение завершилось с ошибкой.
	RunStatusFailed RunStatus = "FAILED"
)

// StatusOf возвращает статус по признаку успеха.
func StatusOf(success bool) RunStatus {
	if success {
		return RunStatusSucceeded
	}
	return RunStatusFailed
}

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}
