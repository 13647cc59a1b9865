package steps

import (
	"context"
	"fmt"
	"time"
)

const (
	// StepTypeWait — тип шага задержки.
	StepTypeWait = "wait"

	// Ключи аргументов wait.
	ArgDurationSec = "duration_sec"
	ArgDurationMs  = "duration_ms"
)

// WaitStep — шаг задержки.
//
// Приостанавливает выполнение на указанное время.
// Поддерживает graceful shutdown через context cancellation.
//
// Аргументы:
//
//	{
//	    "duration_sec": 10,    // задержка в секундах
//	    // или
//	    "duration_ms": 5000    // миллисекунды или строка "5s"
//	}
type WaitStep struct{}

// NewWaitStep создаёт новый WaitStep.
func NewWaitStep() *WaitStep {
	return &WaitStep{}
}

// Type возвращает тип шага.
func (s *WaitStep) Type() string {
	return StepTypeWait
}

// Execute выполняет задержку.
func (s *WaitStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	duration, err := s.parseDuration(req.Args)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	case <-timer.C:
		return NewResponse(map[string]any{
			"duration_ms": duration.Milliseconds(),
		}), nil
	}
}

// parseDuration извлекает длительность из аргументов.
// Нулевая длительность допустима.
func (s *WaitStep) parseDuration(args map[string]any) (time.Duration, error) {
	if sec := GetConfigInt(args, ArgDurationSec); sec > 0 {
		return time.Duration(sec) * time.Second, nil
	}

	if v, ok := args[ArgDurationMs]; ok {
		return ParseDuration(v)
	}

	return 0, fmt.Errorf("%w: %s: duration_sec or duration_ms required",
		ErrInvalidConfig, StepTypeWait)
}

// ParseDuration приводит аргумент wait к time.Duration.
//
// Числа — миллисекунды, строки разбираются time.ParseDuration ("1500ms", "2s").
func ParseDuration(v any) (time.Duration, error) {
	var d time.Duration
	switch x := v.(type) {
	case time.Duration:
		d = x
	case int:
		d = time.Duration(x) * time.Millisecond
	case int64:
		d = time.Duration(x) * time.Millisecond
	case float64:
		d = time.Duration(x * float64(time.Millisecond))
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, StepTypeWait, err)
		}
		d = parsed
	default:
		return 0, fmt.Errorf("%w: %s: duration must be a number or a duration string, got %T",
			ErrInvalidConfig, StepTypeWait, v)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s: negative duration", ErrInvalidConfig, StepTypeWait)
	}
	return d, nil
}
