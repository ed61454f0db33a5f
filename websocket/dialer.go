// Package websocket opens run event channels over WebSocket using
// gorilla/websocket.
package websocket

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fwojciec/triage"
	"github.com/fwojciec/triage/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Compile-time interface verification.
var (
	_ triage.Dialer  = (*Dialer)(nil)
	_ triage.Channel = (*Channel)(nil)
)

const closeGrace = time.Second

// Dialer opens event channels at {BaseURL}/api/events/{runID}/ws. An http
// or https BaseURL is mapped to ws or wss.
type Dialer struct {
	BaseURL string
	Dialer  *websocket.Dialer
	Logger  *log.Logger
}

// NewDialer returns a Dialer for the service at baseURL.
func NewDialer(baseURL string) *Dialer {
	return &Dialer{BaseURL: baseURL}
}

// Dial performs the WebSocket handshake. Canceling ctx later closes
// the connection.
func (d *Dialer) Dial(ctx context.Context, runID triage.RunID) (triage.Channel, error) {
	endpoint, err := EndpointURL(d.BaseURL, runID)
	if err != nil {
		return nil, err
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set("X-Request-ID", uuid.NewString())

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial websocket: server returned %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	logging.OrDiscard(d.Logger).Debug("websocket open", "run", runID, "url", endpoint)

	c := &Channel{conn: conn}
	c.stop = context.AfterFunc(ctx, func() { c.closeConn() })
	return c, nil
}

// EndpointURL builds the WebSocket URL of runID's event channel.
func EndpointURL(baseURL string, runID triage.RunID) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	return u.String() + "/api/events/" + url.PathEscape(string(runID)) + "/ws", nil
}

// Channel yields one payload per WebSocket data frame.
type Channel struct {
	conn *websocket.Conn
	stop func() bool

	closeOnce sync.Once
	closeErr  error
}

// Recv returns the next frame's payload. A normal closure from the
// server is reported as io.EOF.
func (c *Channel) Recv() (string, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return "", io.EOF
		}
		return "", err
	}
	return string(data), nil
}

// Close sends a close frame and closes the connection, unblocking a
// pending Recv. It is safe to call more than once.
func (c *Channel) Close() error {
	c.stop()
	return c.closeConn()
}

// closeConn closes the connection once. It never touches stop, which may
// not be assigned yet when ctx is canceled during Dial.
func (c *Channel) closeConn() error {
	c.closeOnce.Do(func() {
		// Best effort: the peer may already be gone.
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
