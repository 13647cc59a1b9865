package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// TemplateData — данные, доступные в шаблонах шага.
//
//	{{ .Context.handle }}   — контекст шага
//	{{ .Output.uri }}       — выход шага (если уже выполнен)
//	{{ .Config.page_size }} — конфигурация с учётом предков
//	{{ .Env.HOME }}         — переменные окружения
type TemplateData struct {
	Context any               `json:"context"`
	Output  any               `json:"output"`
	Config  map[string]any    `json:"config"`
	Env     map[string]string `json:"env"`
}

// NewTemplateData собирает данные шаблона для шага. s может быть nil.
func NewTemplateData(s *Step) *TemplateData {
	data := &TemplateData{Config: map[string]any{}, Env: environ()}
	if s != nil {
		data.Context = s.Context()
		data.Output = s.Output()
		data.Config = s.MergedConfig()
	}
	return data
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Template возвращает строку, которая рендерится против шага при каждом чтении.
func Template(tmpl string) Resolvable[string] {
	return Resolver(func(_ context.Context, s *Step) (string, error) {
		return Render(tmpl, NewTemplateData(s))
	})
}

// empty — nil или пустая строка.
func empty(v any) bool {
	s, ok := v.(string)
	return v == nil || ok && s == ""
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(b)
}

// strs приводит []string или []any к []string.
func strs(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, len(x))
		for i, item := range x {
			out[i] = fmt.Sprint(item)
		}
		return out
	}
	return nil
}

var templateFuncs = template.FuncMap{
	"json": toJSON,
	"fromJSON": func(s string) any {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil
		}
		return v
	},
	"default": func(def, val any) any {
		if empty(val) {
			return def
		}
		return val
	},
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if !empty(v) {
				return v
			}
		}
		return nil
	},
	"join":      func(sep string, items any) string { return strings.Join(strs(items), sep) },
	"split":     func(sep, s string) []string { return strings.Split(s, sep) },
	"contains":  strings.Contains,
	"hasPrefix": strings.HasPrefix,
	"hasSuffix": strings.HasSuffix,
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"replace":   strings.ReplaceAll,

	// Записи сети
	"did": domain.DID,
	"uri": domain.URI,
	"cid": domain.CID,
	"now": domain.Now,
	"mention": func(handle string) string {
		return "@" + strings.TrimPrefix(handle, "@")
	},
	// truncate режет по рунам: лимит поста считается в символах, не в байтах
	"truncate": func(n int, s string) string {
		r := []rune(s)
		if n < 0 || len(r) <= n {
			return s
		}
		return string(r[:n])
	},
}

// parsed — разобранные шаблоны. Template рендерится при каждом чтении,
// поэтому один и тот же текст не парсится повторно.
var parsed sync.Map // string -> *template.Template

func parse(tmpl string) (*template.Template, error) {
	if t, ok := parsed.Load(tmpl); ok {
		return t.(*template.Template), nil
	}
	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	parsed.Store(tmpl, t)
	return t, nil
}

// Render рендерит строку. Строка без "{{" возвращается как есть.
//
//	{{ .Context.viewer.following }}
//	{{ if gt .Context.followersCount 100.0 }}...{{ end }}
//	{{ mention .Context.handle }}
func Render(tmpl string, data *TemplateData) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}
	t, err := parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

// RenderValue рендерит строки внутри произвольного значения (map, slice).
// Остальные типы возвращаются без изменений.
func RenderValue(value any, data *TemplateData) (any, error) {
	switch v := value.(type) {
	case string:
		return Render(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			r, err := RenderValue(val, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			r, err := RenderValue(val, data)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, val := range v {
			r, err := Render(val, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = r
		}
		return out, nil
	case []string:
		out := make([]string, len(v))
		for i, val := range v {
			r, err := Render(val, data)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	}
	return value, nil
}

// RenderConfig рендерит map аргументов шага. nil даёт пустую map.
func RenderConfig(config map[string]any, data *TemplateData) (map[string]any, error) {
	if config == nil {
		return map[string]any{}, nil
	}
	rendered, err := RenderValue(config, data)
	if err != nil {
		return nil, err
	}
	return rendered.(map[string]any), nil
}

// RenderCondition вычисляет условие в синтаксисе шаблонов, например
// `gt .Context.followersCount 100.0`. Пустое условие — true.
func RenderCondition(condition string, data *TemplateData) (bool, error) {
	if condition == "" {
		return true, nil
	}
	out, err := Render("{{if "+condition+"}}true{{else}}false{{end}}", data)
	if err != nil {
		return false, err
	}
	return out == "true", nil
}
