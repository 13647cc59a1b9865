package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultService — PDS по умолчанию.
	DefaultService = "https://bsky.social"

	// Значения по умолчанию.
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// Session — данные сессии после createSession.
type Session struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// Client — HTTP реализация Agent.
//
// Безопасен для конкурентного использования.
type Client struct {
	service string
	http    *http.Client
	limiter *rate.Limiter

	mu      sync.RWMutex
	session *Session
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP клиент (используется в тестах).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit ограничивает количество запросов в секунду.
// rps <= 0 отключает ограничение.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithSession устанавливает готовую сессию.
func WithSession(s Session) Option {
	return func(c *Client) { c.session = &s }
}

// NewClient создаёт клиента к указанному сервису.
func NewClient(service string, opts ...Option) *Client {
	if service == "" {
		service = DefaultService
	}
	c := &Client{
		service: strings.TrimRight(service, "/"),
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login создаёт клиента и открывает сессию.
func Login(ctx context.Context, service, identifier, password string, opts ...Option) (*Client, error) {
	c := NewClient(service, opts...)
	if err := c.Login(ctx, identifier, password); err != nil {
		return nil, err
	}
	return c, nil
}

// Login открывает сессию (com.atproto.server.createSession).
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	out, err := c.do(ctx, http.MethodPost, MethodCreateSession, nil, map[string]any{
		"identifier": identifier,
		"password":   password,
	}, "")
	if err != nil {
		return fmt.Errorf("login %s: %w", identifier, err)
	}
	return c.storeSession(out)
}

// Session возвращает копию текущей сессии.
func (c *Client) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// DID возвращает DID аутентифицированного пользователя.
func (c *Client) DID() string {
	s, _ := c.Session()
	return s.DID
}

// Query выполняет XRPC query.
func (c *Client) Query(ctx context.Context, nsid string, params map[string]any) (map[string]any, error) {
	return c.authed(ctx, http.MethodGet, nsid, encodeParams(params), nil)
}

// Procedure выполняет XRPC procedure.
func (c *Client) Procedure(ctx context.Context, nsid string, input map[string]any) (map[string]any, error) {
	return c.authed(ctx, http.MethodPost, nsid, nil, input)
}

// authed выполняет запрос с access токеном.
// При ExpiredToken один раз обновляет сессию и повторяет запрос.
func (c *Client) authed(ctx context.Context, method, nsid string, query url.Values, body any) (map[string]any, error) {
	s, ok := c.Session()
	if !ok {
		return nil, ErrNotLoggedIn
	}

	out, err := c.do(ctx, method, nsid, query, body, s.AccessJwt)
	if err == nil || !isExpiredToken(err) {
		return out, err
	}

	if rerr := c.refresh(ctx, s.RefreshJwt); rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	s, _ = c.Session()
	return c.do(ctx, method, nsid, query, body, s.AccessJwt)
}

// refresh обновляет сессию (com.atproto.server.refreshSession).
func (c *Client) refresh(ctx context.Context, refreshJwt string) error {
	out, err := c.do(ctx, http.MethodPost, MethodRefreshSession, nil, nil, refreshJwt)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	return c.storeSession(out)
}

func (c *Client) storeSession(out map[string]any) error {
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()
	return nil
}

// do выполняет один XRPC запрос.
func (c *Client) do(ctx context.Context, method, nsid string, query url.Values, body any, token string) (map[string]any, error) {
	if nsid == "" {
		return nil, ErrEmptyNSID
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := c.buildRequest(ctx, method, nsid, query, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("xrpc %s: %w", nsid, err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// buildRequest создаёт HTTP запрос к /xrpc/{nsid}.
func (c *Client) buildRequest(ctx context.Context, method, nsid string, query url.Values, body any) (*http.Request, error) {
	u := c.service + "/xrpc/" + nsid
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// parseResponse читает JSON ответ или переводит ошибку в категорию.
func (c *Client) parseResponse(resp *http.Response) (map[string]any, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var out map[string]any
	if len(bytes.TrimSpace(bodyBytes)) > 0 {
		// Тело с ошибкой может быть не JSON
		_ = json.Unmarshal(bodyBytes, &out)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			out = make(map[string]any)
		}
		return out, nil
	}

	xerr := &XRPCError{StatusCode: resp.StatusCode, Status: resp.Status}
	if out != nil {
		xerr.Name, _ = out["error"].(string)
		xerr.Message, _ = out["message"].(string)
	}
	if xerr.Message == "" {
		xerr.Message = strings.TrimSpace(string(bodyBytes))
	}
	return nil, classify(xerr, resp.Header, time.Now())
}

func isExpiredToken(err error) bool {
	var xerr *XRPCError
	return errors.As(err, &xerr) && xerr.Name == "ExpiredToken"
}

// encodeParams переводит параметры query в url.Values.
// Слайсы становятся повторяющимися ключами (?uris=a&uris=b).
func encodeParams(params map[string]any) url.Values {
	values := url.Values{}
	for key, v := range params {
		switch x := v.(type) {
		case nil:
		case string:
			if x != "" {
				values.Set(key, x)
			}
		case []string:
			for _, s := range x {
				values.Add(key, s)
			}
		case []any:
			for _, s := range x {
				values.Add(key, fmt.Sprint(s))
			}
		default:
			values.Set(key, fmt.Sprint(x))
		}
	}
	return values
}
