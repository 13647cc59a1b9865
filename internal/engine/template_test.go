package engine

import (
	"context"
	"strings"
	"testing"
)

// dataWith возвращает данные шаблона с контекстом и конфигурацией.
func dataWith(stepCtx any, config map[string]any) *TemplateData {
	if config == nil {
		config = map[string]any{}
	}
	return &TemplateData{Context: stepCtx, Config: config, Env: map[string]string{}}
}

func TestNewTemplateData(t *testing.T) {
	// Без шага
	data := NewTemplateData(nil)
	if data.Config == nil {
		t.Error("Config should not be nil")
	}
	if data.Env == nil {
		t.Error("Env should not be nil")
	}

	// С шагом
	root := New(nil).SetConfig("page_size", 10)
	step := root.Actor("alice.bsky.social").SetContext(map[string]any{"handle": "bob"})
	step.SetOutput("out")

	data = NewTemplateData(step)
	if data.Config["page_size"] != 10 {
		t.Errorf("expected inherited config, got %v", data.Config)
	}
	if data.Output != "out" {
		t.Errorf("expected output, got %v", data.Output)
	}
	ctx, ok := data.Context.(map[string]any)
	if !ok || ctx["handle"] != "bob" {
		t.Errorf("expected context, got %v", data.Context)
	}
}

func TestRender_SimpleContext(t *testing.T) {
	data := dataWith(map[string]any{
		"handle": "alice.bsky.social",
		"count":  42,
	}, map[string]any{"page_size": 25})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "string field",
			template: "Hello, {{ .Context.handle }}!",
			expected: "Hello, alice.bsky.social!",
		},
		{
			name:     "number field",
			template: "Count: {{ .Context.count }}",
			expected: "Count: 42",
		},
		{
			name:     "config",
			template: "limit={{ .Config.page_size }}",
			expected: "limit=25",
		},
		{
			name:     "no template",
			template: "Plain text",
			expected: "Plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_NestedContext(t *testing.T) {
	data := dataWith(map[string]any{
		"viewer": map[string]any{
			"following": "at://did:plc:me/app.bsky.graph.follow/1",
		},
		"labels": []any{"a", "b", "c"},
	}, nil)

	result, err := Render("{{ .Context.viewer.following }}", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "at://did:plc:me/app.bsky.graph.follow/1" {
		t.Errorf("unexpected result %q", result)
	}

	result, err = Render("{{ len .Context.labels }}", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "3" {
		t.Errorf("expected 3, got %q", result)
	}
}

func TestRender_TemplateFunctions(t *testing.T) {
	data := dataWith(map[string]any{
		"text": "Hello World",
		"list": []string{"a", "b", "c"},
	}, nil)

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "lower",
			template: "{{ lower .Context.text }}",
			expected: "hello world",
		},
		{
			name:     "upper",
			template: "{{ upper .Context.text }}",
			expected: "HELLO WORLD",
		},
		{
			name:     "contains",
			template: "{{ contains .Context.text \"World\" }}",
			expected: "true",
		},
		{
			name:     "hasPrefix",
			template: "{{ hasPrefix .Context.text \"Hello\" }}",
			expected: "true",
		},
		{
			name:     "default with value",
			template: "{{ default \"fallback\" .Context.text }}",
			expected: "Hello World",
		},
		{
			name:     "default with nil",
			template: "{{ default \"fallback\" .Context.missing }}",
			expected: "fallback",
		},
		{
			name:     "json",
			template: `{{ json .Context.list }}`,
			expected: `["a","b","c"]`,
		},
		{
			name:     "join",
			template: `{{ join "," .Context.list }}`,
			expected: "a,b,c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	data := dataWith(nil, nil)

	// Некорректный синтаксис
	_, err := Render("{{ .Invalid syntax", data)
	if err == nil {
		t.Fatal("expected error for invalid template")
	}
	if !strings.Contains(err.Error(), "template parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestRenderValue(t *testing.T) {
	data := dataWith(map[string]any{"name": "test"}, nil)

	tests := []struct {
		name     string
		value    any
		expected any
	}{
		{
			name:     "nil",
			value:    nil,
			expected: nil,
		},
		{
			name:     "string without template",
			value:    "plain",
			expected: "plain",
		},
		{
			name:     "string with template",
			value:    "Hello, {{ .Context.name }}",
			expected: "Hello, test",
		},
		{
			name:     "int",
			value:    42,
			expected: 42,
		},
		{
			name:     "bool",
			value:    true,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderValue(tt.value, data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestRenderValue_Map(t *testing.T) {
	data := dataWith(map[string]any{
		"handle": "alice",
		"url":    "https://example.com",
	}, nil)

	value := map[string]any{
		"method": "POST",
		"url":    "{{ .Context.url }}/hook",
		"body": map[string]any{
			"handle": "{{ .Context.handle }}",
		},
	}

	result, err := RenderValue(value, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resultMap, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", result)
	}
	if resultMap["url"] != "https://example.com/hook" {
		t.Errorf("expected rendered url, got %v", resultMap["url"])
	}

	body, ok := resultMap["body"].(map[string]any)
	if !ok {
		t.Fatalf("expected body to be map")
	}
	if body["handle"] != "alice" {
		t.Errorf("expected rendered handle, got %v", body["handle"])
	}
}

func TestRenderValue_Slice(t *testing.T) {
	data := dataWith(map[string]any{"prefix": "item"}, nil)

	value := []any{
		"{{ .Context.prefix }}_1",
		"{{ .Context.prefix }}_2",
		42,
	}

	result, err := RenderValue(value, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resultSlice, ok := result.([]any)
	if !ok {
		t.Fatalf("expected slice, got %T", result)
	}
	if len(resultSlice) != 3 {
		t.Fatalf("expected 3 items, got %d", len(resultSlice))
	}
	if resultSlice[0] != "item_1" || resultSlice[1] != "item_2" || resultSlice[2] != 42 {
		t.Errorf("unexpected result %v", resultSlice)
	}
}

func TestRenderConfig_Nil(t *testing.T) {
	result, err := RenderConfig(nil, dataWith(nil, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Error("result should not be nil")
	}
	if len(result) != 0 {
		t.Error("result should be empty")
	}
}

func TestRenderCondition(t *testing.T) {
	data := dataWith(map[string]any{
		"enabled":        true,
		"followersCount": 5,
	}, map[string]any{"dry_run": true})

	tests := []struct {
		name      string
		condition string
		expected  bool
	}{
		{
			name:      "empty condition",
			condition: "",
			expected:  true,
		},
		{
			name:      "true condition",
			condition: ".Context.enabled",
			expected:  true,
		},
		{
			name:      "comparison true",
			condition: "gt .Context.followersCount 3",
			expected:  true,
		},
		{
			name:      "comparison false",
			condition: "gt .Context.followersCount 10",
			expected:  false,
		},
		{
			name:      "config",
			condition: ".Config.dry_run",
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderCondition(tt.condition, data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestEvalCondition(t *testing.T) {
	data := dataWith(map[string]any{
		"handle":         "alice.bsky.social",
		"followersCount": 150,
	}, map[string]any{"dry_run": false})

	tests := []struct {
		name      string
		condition string
		expected  bool
		wantErr   bool
	}{
		{name: "empty", condition: "", expected: true},
		{name: "comparison", condition: "context.followersCount > 100", expected: true},
		{name: "string op", condition: `context.handle endsWith ".bsky.social"`, expected: true},
		{name: "config", condition: "config.dry_run == true", expected: false},
		{name: "not bool", condition: "context.followersCount", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EvalCondition(tt.condition, data)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestTemplate_ResolvesAgainstStep(t *testing.T) {
	step := New(nil).Actor("x").SetContext(map[string]any{"handle": "carol"})

	r := Template("@{{ .Context.handle }}")
	got, err := r.Resolve(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "@carol" {
		t.Errorf("expected @carol, got %q", got)
	}
}

func TestRender_RecordFunctions(t *testing.T) {
	data := dataWith(map[string]any{
		"handle": "alice.bsky.social",
		"author": map[string]any{"did": "did:plc:alice"},
		"uri":    "at://did:plc:alice/app.bsky.feed.post/1",
		"cid":    "bafy1",
		"text":   "привет, мир",
		"tags":   []any{"go", "atproto"},
	}, nil)

	tests := []struct {
		template string
		expected string
	}{
		{"{{ did .Context }}", "did:plc:alice"},
		{"{{ uri .Context }}", "at://did:plc:alice/app.bsky.feed.post/1"},
		{"{{ cid .Context }}", "bafy1"},
		{"{{ mention .Context.handle }}", "@alice.bsky.social"},
		{`{{ mention "@bob.test" }}`, "@bob.test"},
		{"{{ truncate 6 .Context.text }}", "привет"},
		{"{{ truncate 100 .Context.text }}", "привет, мир"},
		{`{{ join " #" .Context.tags }}`, "go #atproto"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			got, err := Render(tt.template, data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRenderValue_ErrorNamesKey(t *testing.T) {
	_, err := RenderValue(map[string]any{"text": "{{ .Context.x.y.z }}"}, dataWith("plain", nil))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "text: ") {
		t.Errorf("expected key prefix, got %q", err)
	}
}
