package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// StepTypeWebhook — тип шага отправки контекста во внешний HTTP endpoint.
	StepTypeWebhook = "webhook"

	defaultWebhookTimeout = 30 * time.Second
	maxResponseBody       = 1024 * 1024 // 1 MB
)

// Ключи аргументов webhook.
const (
	ArgURL     = "url"
	ArgMethod  = "method"
	ArgHeaders = "headers"
)

// WebhookStep отправляет контекст шага JSON-телом во внешний endpoint.
//
// Аргументы:
//
//	{
//	    "url": "https://hooks.example.com/bsky",
//	    "method": "POST",                    // по умолчанию POST
//	    "headers": {"X-Token": "secret"}
//	}
//
// Output:
//
//	{"status_code": 200, "body": {...}}  // JSON или строка
type WebhookStep struct {
	client *http.Client
}

// NewWebhookStep создаёт новый WebhookStep.
func NewWebhookStep() *WebhookStep {
	return &WebhookStep{
		client: &http.Client{Timeout: defaultWebhookTimeout},
	}
}

// Type возвращает тип шага.
func (s *WebhookStep) Type() string {
	return StepTypeWebhook
}

// Execute выполняет HTTP запрос.
func (s *WebhookStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	url := GetConfigString(req.Args, ArgURL)
	if url == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrInvalidConfig, StepTypeWebhook)
	}
	method := strings.ToUpper(GetConfigString(req.Args, ArgMethod))
	if method == "" {
		method = http.MethodPost
	}

	if req.DryRun() {
		return NewResponse(dryRunOutput(StepTypeWebhook, url)), nil
	}

	body, err := json.Marshal(req.Context)
	if err != nil {
		return nil, fmt.Errorf("serialize body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range GetConfigMapString(req.Args, ArgHeaders) {
		httpReq.Header.Set(key, value)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	return s.parseResponse(resp)
}

// parseResponse парсит HTTP ответ в Response.
func (s *WebhookStep) parseResponse(resp *http.Response) (*Response, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(bodyBytes)}
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	return NewResponse(map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
	}), nil
}

// HTTPError — ответ webhook с кодом ошибки.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}
