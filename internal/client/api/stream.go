package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/iudanet/tabkeeper/pkg/api"
)

// Subscribe подключается к websocket потоку событий и вызывает onEvent
// для каждого сообщения. Блокируется до обрыва соединения или отмены
// контекста. Сервер закрывает соединение по достижении потолка жизни,
// переподключение - забота вызывающего.
func (c *Client) Subscribe(ctx context.Context, onEvent func(api.StreamMessage)) error {
	wsURL := httpToWS(c.baseURL) + "/api/v1/sync/stream"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream read failed: %w", err)
		}

		var msg api.StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Непонятный кадр пропускаем: polling все равно доберет
			continue
		}

		onEvent(msg)
	}
}

// httpToWS превращает http(s) базовый адрес в ws(s)
func httpToWS(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	}
	return baseURL
}
