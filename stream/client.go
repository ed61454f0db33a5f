// Package stream implements a run event log fed by a single live channel.
package stream

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fwojciec/triage"
	"github.com/fwojciec/triage/logging"
)

// Compile-time interface verification.
var _ triage.EventStream = (*Client)(nil)

// Observer receives every change of the log or connection state, in order.
// It is called with the client's lock held and must not call back into the
// Client synchronously.
type Observer func(triage.Snapshot)

// Option configures a Client.
type Option func(*Client)

// WithObserver registers fn to be notified of every update.
func WithObserver(fn Observer) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// WithLogger sets the logger for lifecycle transitions.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Client keeps the event log for the current run. At most one channel is
// open at any instant: a new subscription dials only after the previous
// channel has been closed and its reader has exited.
type Client struct {
	dialer   triage.Dialer
	observer Observer
	logger   *log.Logger

	mu     sync.Mutex
	runID  triage.RunID
	state  triage.ConnState
	events []triage.StreamEvent
	sub    *subscription // nil when no channel is owned

	// done of the most recent reader goroutine, even after teardown
	lastDone chan struct{}
}

// subscription is the handle for one channel. Its identity is what guards
// the log against deliveries from superseded channels.
type subscription struct {
	runID  triage.RunID
	cancel context.CancelFunc
	done   chan struct{}

	ch     triage.Channel // set once dialed; guarded by Client.mu
	closed bool           // guarded by Client.mu
}

// NewClient creates a Client that opens channels through dialer.
func NewClient(dialer triage.Dialer, opts ...Option) *Client {
	c := &Client{dialer: dialer}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger)
	return c
}

// Subscribe switches the log to runID. Any previous channel is closed before
// this call returns, the log is emptied and, for a non-empty runID, a new
// channel is dialed in the background.
func (c *Client) Subscribe(runID triage.RunID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
	c.runID = runID
	c.events = nil

	if runID == "" {
		c.state = triage.StateIdle
		c.notifyLocked()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		runID:  runID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	prevDone := c.lastDone
	c.sub = sub
	c.lastDone = sub.done
	c.state = triage.StateOpen
	c.logger.Debug("subscribing", "run", runID)
	c.notifyLocked()

	go c.read(ctx, sub, prevDone)
}

// Unsubscribe closes the current channel. It is a no-op when none is open.
// The log is kept.
func (c *Client) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub == nil {
		return
	}
	c.teardownLocked()
	c.state = triage.StateClosed
	c.notifyLocked()
}

// Close unsubscribes and waits for the channel reader to exit.
func (c *Client) Close() error {
	c.Unsubscribe()

	c.mu.Lock()
	done := c.lastDone
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}

// Snapshot returns the current run, state and log.
func (c *Client) Snapshot() triage.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// read dials and pumps one channel until it fails or is torn down.
func (c *Client) read(ctx context.Context, sub *subscription, prevDone <-chan struct{}) {
	defer close(sub.done)

	if prevDone != nil {
		<-prevDone
	}
	if ctx.Err() != nil {
		return
	}

	ch, err := c.dialer.Dial(ctx, sub.runID)
	if err != nil {
		c.fail(sub, err)
		return
	}
	if !c.attach(sub, ch) {
		ch.Close()
		return
	}

	for {
		payload, err := ch.Recv()
		if err != nil {
			c.fail(sub, err)
			return
		}
		c.deliver(sub, payload)
	}
}

// attach records the dialed channel unless sub was torn down meanwhile.
func (c *Client) attach(sub *subscription, ch triage.Channel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sub.closed {
		return false
	}
	sub.ch = ch
	c.logger.Info("channel open", "run", sub.runID)
	return true
}

func (c *Client) deliver(sub *subscription, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != sub {
		return
	}
	c.events = append(c.events, triage.ParseEvent(payload))
	c.notifyLocked()
}

// fail records the terminal system event, then closes the channel.
// Nothing happens for a subscription that was already superseded.
func (c *Client) fail(sub *subscription, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != sub {
		return
	}
	c.logger.Warn("channel failed", "run", sub.runID, "err", err)
	c.events = append(c.events, triage.StreamEvent{Kind: triage.KindSystem, Text: triage.ClosedText})
	c.notifyLocked()

	c.teardownLocked()
	c.state = triage.StateClosed
	c.notifyLocked()
}

// teardownLocked closes the current subscription's channel and forgets it.
func (c *Client) teardownLocked() {
	sub := c.sub
	if sub == nil {
		return
	}
	c.sub = nil
	sub.closed = true
	sub.cancel()
	if sub.ch != nil {
		if err := sub.ch.Close(); err != nil {
			c.logger.Debug("close channel", "run", sub.runID, "err", err)
		}
	}
	c.logger.Debug("channel closed", "run", sub.runID)
}

func (c *Client) snapshotLocked() triage.Snapshot {
	n := len(c.events)
	return triage.Snapshot{
		RunID: c.runID,
		State: c.state,
		// Capped so a later append never writes into a published view.
		Events: c.events[:n:n],
	}
}

func (c *Client) notifyLocked() {
	if c.observer != nil {
		c.observer(c.snapshotLocked())
	}
}
