package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// DefaultJetstreamURL — публичный Jetstream.
const DefaultJetstreamURL = "wss://jetstream2.us-east.bsky.network/subscribe"

// Jetstream — источник событий из Jetstream по WebSocket.
type Jetstream struct {
	// URL эндпоинта subscribe.
	URL string

	// Collections передаются как wantedCollections. Пусто — все коллекции.
	Collections []string

	// Cursor — time_us, с которого начинать (0 — с текущего момента).
	Cursor int64

	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// NewJetstream создаёт источник. Пустой url означает DefaultJetstreamURL.
func NewJetstream(rawURL string, collections ...string) *Jetstream {
	if rawURL == "" {
		rawURL = DefaultJetstreamURL
	}
	return &Jetstream{
		URL:         rawURL,
		Collections: collections,
		Dialer:      websocket.DefaultDialer,
		Logger:      slog.Default(),
	}
}

// Endpoint возвращает URL подписки с параметрами.
func (j *Jetstream) Endpoint() (string, error) {
	u, err := url.Parse(j.URL)
	if err != nil {
		return "", fmt.Errorf("parse jetstream url: %w", err)
	}
	q := u.Query()
	for _, c := range j.Collections {
		q.Add("wantedCollections", c)
	}
	if j.Cursor > 0 {
		q.Set("cursor", strconv.FormatInt(j.Cursor, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe читает сообщения, пока сервер не закроет соединение или не отменён ctx.
//
// Нормальное закрытие соединения сервером завершает подписку без ошибки.
func (j *Jetstream) Subscribe(ctx context.Context, out chan<- domain.StreamMessage) error {
	endpoint, err := j.Endpoint()
	if err != nil {
		return err
	}

	dialer := j.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial jetstream: %w", err)
	}
	defer conn.Close()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("jetstream connected", "url", endpoint)

	// Закрываем соединение при отмене, чтобы разблокировать чтение
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read jetstream: %w", err)
		}

		var msg domain.StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("skip malformed jetstream message", "error", err)
			continue
		}

		if msg.TimeUS > 0 {
			j.Cursor = msg.TimeUS
		}
		if err := send(ctx, out, msg); err != nil {
			return err
		}
	}
}
