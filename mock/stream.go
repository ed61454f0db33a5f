package mock

import (
	"context"

	"github.com/fwojciec/triage"
)

// Compile-time interface verification.
var (
	_ triage.Dialer      = (*Dialer)(nil)
	_ triage.Channel     = (*Channel)(nil)
	_ triage.EventStream = (*EventStream)(nil)
)

// Dialer is a mock implementation of triage.Dialer.
type Dialer struct {
	DialFn func(ctx context.Context, runID triage.RunID) (triage.Channel, error)
}

func (d *Dialer) Dial(ctx context.Context, runID triage.RunID) (triage.Channel, error) {
	return d.DialFn(ctx, runID)
}

// Channel is a mock implementation of triage.Channel.
type Channel struct {
	RecvFn  func() (string, error)
	CloseFn func() error
}

func (c *Channel) Recv() (string, error) {
	return c.RecvFn()
}

func (c *Channel) Close() error {
	return c.CloseFn()
}

// EventStream is a mock implementation of triage.EventStream.
type EventStream struct {
	SubscribeFn   func(runID triage.RunID)
	UnsubscribeFn func()
	SnapshotFn    func() triage.Snapshot
}

func (s *EventStream) Subscribe(runID triage.RunID) {
	s.SubscribeFn(runID)
}

func (s *EventStream) Unsubscribe() {
	s.UnsubscribeFn()
}

func (s *EventStream) Snapshot() triage.Snapshot {
	return s.SnapshotFn()
}
