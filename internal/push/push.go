// Package push is the client side of the order change channel.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"

	"canteen/internal/model"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second

	maxMessageSize = 64 << 10
	closeGrace     = time.Second
)

// Stream delivers push events until it fails or is closed. Close unblocks a
// pending Read.
type Stream interface {
	Read() (model.Event, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// WebSocketDialer opens the channel at URL, presenting the session cookies
// from Jar.
type WebSocketDialer struct {
	URL              string
	Jar              http.CookieJar
	HandshakeTimeout time.Duration
}

func NewDialer(url string, jar http.CookieJar) *WebSocketDialer {
	return &WebSocketDialer{URL: url, Jar: jar, HandshakeTimeout: DefaultHandshakeTimeout}
}

func (d *WebSocketDialer) Dial(ctx context.Context) (Stream, error) {
	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		Jar:              d.Jar,
	}
	conn, resp, err := wd.DialContext(ctx, d.URL, nil)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, fmt.Errorf("%w: push channel rejected the session", errors.Unauthorized)
			}
			return nil, fmt.Errorf("dial %s: %s: %w", d.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)
	return &Conn{conn: conn}, nil
}

// Conn is a Stream over a websocket connection.
type Conn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Read returns the next well-formed event. Messages that cannot be parsed
// are logged and skipped.
func (c *Conn) Read() (model.Event, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return model.Event{}, err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		ev, err := model.ParseEvent(data)
		if err != nil {
			slog.Debug("skipping push message", "error", err)
			continue
		}
		return ev, nil
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
