package realtime

import (
	"context"
	"fmt"
	"net/url"

	"github.com/coder/websocket"
)

// streamPath is appended to the API base URL to reach the event stream.
const streamPath = "/ws/challenges"

// Conn is a read-only view of one live stream connection.
type Conn interface {
	// Read blocks for the next text frame.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens stream connections. Tests substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// StreamBaseURL derives the websocket endpoint from the configured API base
// URL by swapping the HTTP scheme for its websocket counterpart.
func StreamBaseURL(apiBase string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = streamPath
	u.RawQuery = ""
	return u.String(), nil
}

// streamURL attaches the topic query parameter to the websocket base URL.
func streamURL(base, topic string) string {
	q := url.Values{}
	q.Set("topic", topic)
	return base + "?" + q.Encode()
}

type wsDialer struct{}

// NewWebSocketDialer returns the production Dialer.
func NewWebSocketDialer() Dialer { return wsDialer{} }

func (wsDialer) Dial(ctx context.Context, u string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "bye")
}
