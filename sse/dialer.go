// Package sse opens run event channels over Server-Sent Events.
package sse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fwojciec/triage"
	"github.com/fwojciec/triage/logging"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var (
	_ triage.Dialer  = (*Dialer)(nil)
	_ triage.Channel = (*Channel)(nil)
)

// Dialer opens event channels at {BaseURL}/api/events/{runID}/stream.
type Dialer struct {
	BaseURL string

	// HTTPClient must not set a Timeout, which would cut long streams.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewDialer returns a Dialer for the service at baseURL.
func NewDialer(baseURL string) *Dialer {
	return &Dialer{BaseURL: baseURL}
}

// Dial sends the stream request and returns once response headers arrive.
// Canceling ctx closes the channel.
func (d *Dialer) Dial(ctx context.Context, runID triage.RunID) (triage.Channel, error) {
	endpoint := strings.TrimSuffix(d.BaseURL, "/") + "/api/events/" + url.PathEscape(string(runID)) + "/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-ID", uuid.NewString())

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := logging.OrDiscard(d.Logger)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: server returned %d", resp.StatusCode)
	}
	logger.Debug("sse stream open", "run", runID, "url", endpoint)

	return &Channel{body: resp.Body, scanner: NewScanner(resp.Body)}, nil
}

// Channel yields the data of each default-type event on one stream.
type Channel struct {
	body    io.ReadCloser
	scanner *Scanner
}

// Recv returns the next event's data. Named events are skipped since
// only unnamed "message" events carry run output. The end of the
// stream is reported as io.EOF.
func (c *Channel) Recv() (string, error) {
	for c.scanner.Next() {
		ev := c.scanner.Event()
		if ev.Type == "" || ev.Type == "message" {
			return ev.Data, nil
		}
	}
	if err := c.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Close closes the response body, unblocking a pending Recv.
func (c *Channel) Close() error {
	return c.body.Close()
}
