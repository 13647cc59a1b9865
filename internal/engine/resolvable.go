package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Resolvable — значение, которое вычисляется в момент выполнения шага.
//
// Допустимые формы:
//   - готовое значение T
//   - func(*Step) T
//   - func(context.Context, *Step) (T, error)
//   - <-chan T (future: читается один раз, дальше отдаётся то же значение)
//   - для строк: шаблон "{{ ... }}" против контекста шага
//
// Функции вызываются при каждом чтении, результат не кэшируется.
type Resolvable[T any] struct {
	value T
	fn    func(context.Context, *Step) (T, error)
	set   bool
}

// Value оборачивает готовое значение.
func Value[T any](v T) Resolvable[T] {
	return Resolvable[T]{value: v, set: true}
}

// Func оборачивает функцию от шага.
func Func[T any](fn func(*Step) T) Resolvable[T] {
	return Resolvable[T]{
		fn: func(_ context.Context, s *Step) (T, error) {
			return fn(s), nil
		},
		set: true,
	}
}

// Resolver оборачивает функцию с контекстом и ошибкой.
func Resolver[T any](fn func(context.Context, *Step) (T, error)) Resolvable[T] {
	return Resolvable[T]{fn: fn, set: true}
}

// Future оборачивает канал, из которого значение придёт позже.
func Future[T any](ch <-chan T) Resolvable[T] {
	var (
		mu   sync.Mutex
		done bool
		v    T
	)
	return Resolvable[T]{
		fn: func(ctx context.Context, _ *Step) (T, error) {
			mu.Lock()
			defer mu.Unlock()
			if done {
				return v, nil
			}
			select {
			case x, ok := <-ch:
				if !ok {
					return v, fmt.Errorf("%w: future channel closed", ErrUnresolved)
				}
				v, done = x, true
				return v, nil
			case <-ctx.Done():
				return v, ctx.Err()
			}
		},
		set: true,
	}
}

// IsSet возвращает true, если значение задано.
func (r Resolvable[T]) IsSet() bool {
	return r.set
}

// Resolve вычисляет значение для шага.
func (r Resolvable[T]) Resolve(ctx context.Context, s *Step) (T, error) {
	if r.fn != nil {
		return r.fn(ctx, s)
	}
	return r.value, nil
}

// Coerce приводит аргумент fluent-метода к Resolvable[T].
func Coerce[T any](v any) (Resolvable[T], error) {
	if s, ok := v.(string); ok && strings.Contains(s, "{{") {
		if r, ok := any(Template(s)).(Resolvable[T]); ok {
			return r, nil
		}
	}

	switch x := v.(type) {
	case Resolvable[T]:
		return x, nil
	case func(*Step) T:
		return Func(x), nil
	case func(context.Context, *Step) (T, error):
		return Resolver(x), nil
	case <-chan T:
		return Future(x), nil
	case chan T:
		return Future((<-chan T)(x)), nil
	case T:
		return Value(x), nil
	}

	var zero T
	return Resolvable[T]{}, fmt.Errorf("%w: expected %T or a resolver, got %T", ErrInvalidArgument, zero, v)
}

// Erase превращает Resolvable[T] в Resolvable[any] для хранения в аргументах шага.
func Erase[T any](r Resolvable[T]) Resolvable[any] {
	if !r.set {
		return Resolvable[any]{}
	}
	return Resolver(func(ctx context.Context, s *Step) (any, error) {
		return r.Resolve(ctx, s)
	})
}

// coerceInt — Coerce[int] с поддержкой чисел из JSON и YAML
// и шаблонов, результат которых разбирается как целое.
func coerceInt(v any) (Resolvable[int], error) {
	switch n := v.(type) {
	case int64:
		return Value(int(n)), nil
	case float64:
		return Value(int(n)), nil
	case uint64:
		return Value(int(n)), nil
	case string:
		if !strings.Contains(n, "{{") {
			break
		}
		tmpl := Template(n)
		return Resolver(func(ctx context.Context, s *Step) (int, error) {
			out, err := tmpl.Resolve(ctx, s)
			if err != nil {
				return 0, err
			}
			i, err := strconv.Atoi(strings.TrimSpace(out))
			if err != nil {
				return 0, fmt.Errorf("%w: template %q rendered %q, not an integer", ErrInvalidArgument, n, out)
			}
			return i, nil
		}), nil
	}
	return Coerce[int](v)
}
