// Package agenttest содержит поддельный Agent для тестов.
package agenttest

import (
	"context"
	"fmt"
	"sync"
)

// Handler отвечает на один XRPC вызов.
type Handler func(ctx context.Context, params map[string]any) (map[string]any, error)

// Call — записанный вызов.
type Call struct {
	NSID   string
	Params map[string]any
}

// Fake — Agent со скриптованными ответами.
type Fake struct {
	Did string

	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

// New создаёт Fake для указанного DID.
func New(did string) *Fake {
	return &Fake{
		Did:      did,
		handlers: make(map[string]Handler),
	}
}

// Handle регистрирует обработчик для метода.
func (f *Fake) Handle(nsid string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[nsid] = h
	return f
}

// Respond регистрирует статический ответ для метода.
func (f *Fake) Respond(nsid string, out map[string]any) *Fake {
	return f.Handle(nsid, func(context.Context, map[string]any) (map[string]any, error) {
		return out, nil
	})
}

// Fail регистрирует ошибку для метода.
func (f *Fake) Fail(nsid string, err error) *Fake {
	return f.Handle(nsid, func(context.Context, map[string]any) (map[string]any, error) {
		return nil, err
	})
}

// Pages регистрирует постраничный ответ: items режутся по size,
// курсор — номер следующей страницы.
func (f *Fake) Pages(nsid, field string, items []any, size int) *Fake {
	return f.Handle(nsid, func(_ context.Context, params map[string]any) (map[string]any, error) {
		start := 0
		if c, ok := params["cursor"].(string); ok && c != "" {
			if _, err := fmt.Sscanf(c, "%d", &start); err != nil {
				return nil, fmt.Errorf("bad cursor %q", c)
			}
		}
		end := min(start+size, len(items))
		out := map[string]any{field: append([]any(nil), items[start:end]...)}
		if end < len(items) {
			out["cursor"] = fmt.Sprint(end)
		}
		return out, nil
	})
}

// DID реализует agent.Agent.
func (f *Fake) DID() string {
	return f.Did
}

// Query реализует agent.Agent.
func (f *Fake) Query(ctx context.Context, nsid string, params map[string]any) (map[string]any, error) {
	return f.call(ctx, nsid, params)
}

// Procedure реализует agent.Agent.
func (f *Fake) Procedure(ctx context.Context, nsid string, input map[string]any) (map[string]any, error) {
	return f.call(ctx, nsid, input)
}

func (f *Fake) call(ctx context.Context, nsid string, params map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{NSID: nsid, Params: params})
	h, ok := f.handlers[nsid]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("agenttest: no handler for %s", nsid)
	}
	return h(ctx, params)
}

// Calls возвращает все вызовы указанного метода (или все, если nsid пустой).
func (f *Fake) Calls(nsid string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if nsid == "" || c.NSID == nsid {
			out = append(out, c)
		}
	}
	return out
}

// Count возвращает количество вызовов метода.
func (f *Fake) Count(nsid string) int {
	return len(f.Calls(nsid))
}
