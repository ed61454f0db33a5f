package stream_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/triage"
	"github.com/fwojciec/triage/mock"
	"github.com/fwojciec/triage/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

var errTransport = errors.New("transport failed")

// recorder keeps an ordered trace of dial and close calls.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type result struct {
	payload string
	err     error
}

// pipe is a channel driven by the test. Sends block until the reader
// has received the payload.
type pipe struct {
	runID     triage.RunID
	msgs      chan result
	closed    chan struct{}
	closeOnce sync.Once
	stubborn  bool // Close does not unblock Recv
	rec       *recorder
}

func (p *pipe) Recv() (string, error) {
	if p.stubborn {
		r := <-p.msgs
		return r.payload, r.err
	}
	select {
	case r := <-p.msgs:
		return r.payload, r.err
	case <-p.closed:
		return "", errors.New("closed")
	}
}

func (p *pipe) Close() error {
	p.rec.add("close " + string(p.runID))
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipe) send(t *testing.T, payload string) {
	t.Helper()
	select {
	case p.msgs <- result{payload: payload}:
	case <-time.After(waitFor):
		t.Fatalf("reader never received %q", payload)
	}
}

func (p *pipe) fail(t *testing.T, err error) {
	t.Helper()
	select {
	case p.msgs <- result{err: err}:
	case <-time.After(waitFor):
		t.Fatalf("reader never received error")
	}
}

// fakeDialer hands out pipes and reports each dial on dialed.
type fakeDialer struct {
	rec      *recorder
	dialed   chan *pipe
	stubborn bool
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{rec: &recorder{}, dialed: make(chan *pipe, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, runID triage.RunID) (triage.Channel, error) {
	d.rec.add("dial " + string(runID))
	p := &pipe{
		runID:    runID,
		msgs:     make(chan result),
		closed:   make(chan struct{}),
		stubborn: d.stubborn,
		rec:      d.rec,
	}
	d.dialed <- p
	return p, nil
}

func (d *fakeDialer) next(t *testing.T) *pipe {
	t.Helper()
	select {
	case p := <-d.dialed:
		return p
	case <-time.After(waitFor):
		t.Fatal("no channel was dialed")
		return nil
	}
}

// updates collects every snapshot published to the observer.
type updates struct {
	mu   sync.Mutex
	list []triage.Snapshot
}

func (u *updates) observe(s triage.Snapshot) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.list = append(u.list, s)
}

func (u *updates) all() []triage.Snapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]triage.Snapshot(nil), u.list...)
}

func waitState(t *testing.T, c *stream.Client, state triage.ConnState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().State == state
	}, waitFor, 5*time.Millisecond)
}

func waitEvents(t *testing.T, c *stream.Client, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.Snapshot().Events) == n
	}, waitFor, 5*time.Millisecond)
}

func TestClient_SubscribeEmptyRunDoesNotDial(t *testing.T) {
	t.Parallel()

	dialer := &mock.Dialer{
		DialFn: func(ctx context.Context, runID triage.RunID) (triage.Channel, error) {
			t.Fatal("dial must not be called for an empty run")
			return nil, nil
		},
	}
	c := stream.NewClient(dialer)

	c.Subscribe("")

	snap := c.Snapshot()
	assert.Equal(t, triage.StateIdle, snap.State)
	assert.Empty(t, snap.Events)
	assert.Equal(t, triage.RunID(""), snap.RunID)
}

func TestClient_MessagesRawAndTransportError(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer()
	c := stream.NewClient(dialer)
	defer c.Close()

	c.Subscribe("run-1")
	p := dialer.next(t)

	p.send(t, `{"kind":"message","text":"step 1"}`)
	p.send(t, "oops")
	p.fail(t, errTransport)

	waitState(t, c, triage.StateClosed)
	assert.Equal(t, []triage.StreamEvent{
		{Kind: triage.KindMessage, Text: "step 1"},
		{Kind: triage.KindRaw, Text: "oops"},
		{Kind: triage.KindSystem, Text: triage.ClosedText},
	}, c.Snapshot().Events)
	assert.Equal(t, []string{"dial run-1", "close run-1"}, dialer.rec.trace())
}

func TestClient_PreservesOrder(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer()
	c := stream.NewClient(dialer)
	defer c.Close()

	c.Subscribe("run-1")
	p := dialer.next(t)

	var want []triage.StreamEvent
	for i := 0; i < 50; i++ {
		text := fmt.Sprintf("step %d", i)
		if i%7 == 0 {
			p.send(t, text)
			want = append(want, triage.StreamEvent{Kind: triage.KindRaw, Text: text})
			continue
		}
		p.send(t, fmt.Sprintf(`{"kind":"message","text":%q}`, text))
		want = append(want, triage.StreamEvent{Kind: triage.KindMessage, Text: text})
	}

	waitEvents(t, c, len(want))
	assert.Equal(t, want, c.Snapshot().Events)
	assert.Equal(t, triage.StateOpen, c.Snapshot().State)
}

func TestClient_ObserverSeesOneUpdatePerAppend(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer()
	var u updates
	c := stream.NewClient(dialer, stream.WithObserver(u.observe))
	defer c.Close()

	c.Subscribe("run-1")
	p := dialer.next(t)
	p.send(t, `{"kind":"message","text":"a"}`)
	p.send(t, `{"kind":"message","text":"b"}`)
	waitEvents(t, c, 2)

	got := u.all()
	require.Len(t, got, 3)
	assert.Empty(t, got[0].Events, "subscribe publishes the reset log")
	assert.Equal(t, triage.StateOpen, got[0].State)
	assert.Len(t, got[1].Events, 1)
	assert.Len(t, got[2].Events, 2)
	assert.Len(t, got[1].Events, 1, "published snapshots are not mutated by later appends")
}

func TestClient_TransportErrorEmitsEventBeforeClosing(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer()
	var u updates
	c := stream.NewClient(dialer, stream.WithObserver(u.observe))
	defer c.Close()

	c.Subscribe("run-1")
	dialer.next(t).fail(t, errTransport)
	waitState(t, c, triage.StateClosed)

	got := u.all()
	require.Len(t, got, 3)
	assert.Equal(t, triage.StateOpen, got[1].State)
	assert.Equal(t, []triage.StreamEvent{{Kind: triage.KindSystem, Text: triage.ClosedText}}, got[1].Events)
	assert.Equal(t, triage.StateClosed, got[2].State)
	assert.Len(t, got[2].Events, 1)
}

func TestClient_DialFailureIsTerminal(t *testing.T) {
	t.Parallel()

	var dials int
	var mu sync.Mutex
	dialer := &mock.Dialer{
		DialFn: func(ctx context.Context, runID triage.RunID) (triage.Channel, error) {
			mu.Lock()
			dials++
			mu.Unlock()
			return nil, errors.New("connection refused")
		},
	}
	c := stream.NewClient(dialer)
	defer c.Close()

	c.Subscribe("run-1")

	waitState(t, c, triage.StateClosed)
	assert.Equal(t, []triage.StreamEvent{{Kind: triage.KindSystem, Text: triage.ClosedText}}, c.Snapshot().Events)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, dials, "failed channels are not retried")
	mu.Unlock()
}

func TestClient_SwitchingRunsClosesPreviousChannelFirst(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer()
	var u updates
	c := stream.NewClient(dialer, stream.WithObserver(u.observe))
	defer c.Close()

	c.Subscribe("run-1")
	first := dialer.next(t)
	first.send(t, `{"kind":"message","text":"from run-1"}`)
	waitEvents(t, c, 1)

	c.Subscribe("run-2")

	snap := c.Snapshot()
	assert.Equal(t, triage.RunID("run-2"), snap.RunID)
	assert.Empty(t, snap.Events, "log is empty right after switching runs")

	second := dialer.next(t)
	second.send(t, `{"kind":"message","text":"from run-2"}`)
	waitEvents(t, c, 1)

	assert.Equal(t, []triage.StreamEvent{{Kind: triage.KindMessage, Text: "from run-2"}}, c.Snapshot().Events)
	assert.Equal(t, []string{"dial run-1", "close run-1", "dial run-2"}, dialer.rec.trace())
}

func TestClient_LateMessageOnSupersededChannelIsDropped(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer()
	dialer.stubborn = true
	var u updates
	c := stream.NewClient(dialer, stream.WithObserver(u.observe))
	defer func() {
		c.Unsubscribe()
	}()

	c.Subscribe("run-1")
	first := dialer.next(t)

	c.Subscribe("run-2")
	assert.Empty(t, c.Snapshot().Events)

	// run-1's reader is still alive because its channel ignores Close.
	first.send(t, `{"kind":"message","text":"late"}`)
	first.fail(t, errTransport)

	// run-2 is dialed only once run-1's reader has exited.
	second := dialer.next(t)
	assert.Equal(t, triage.RunID("run-2"), second.runID)
	assert.Empty(t, c.Snapshot().Events)
	assert.Equal(t, triage.StateOpen, c.Snapshot().State)

	for _, s := range u.all() {
		for _, ev := range s.Events {
			assert.NotEqual(t, "late", ev.Text)
			assert.NotEqual(t, triage.KindSystem, ev.Kind)
		}
	}
	second.fail(t, errTransport)
}

func TestClient_Unsubscribe(t *testing.T) {
	t.Parallel()

	t.Run("closes channel and keeps log", func(t *testing.T) {
		t.Parallel()

		dialer := newFakeDialer()
		c := stream.NewClient(dialer)
		defer c.Close()

		c.Subscribe("run-1")
		p := dialer.next(t)
		p.send(t, `{"kind":"message","text":"kept"}`)
		waitEvents(t, c, 1)

		c.Unsubscribe()

		snap := c.Snapshot()
		assert.Equal(t, triage.StateClosed, snap.State)
		assert.Len(t, snap.Events, 1)
		assert.Equal(t, []string{"dial run-1", "close run-1"}, dialer.rec.trace())
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		var u updates
		c := stream.NewClient(newFakeDialer(), stream.WithObserver(u.observe))

		c.Unsubscribe()
		c.Unsubscribe()

		assert.Empty(t, u.all())
		assert.Equal(t, triage.StateIdle, c.Snapshot().State)
	})

	t.Run("no terminal event after explicit close", func(t *testing.T) {
		t.Parallel()

		dialer := newFakeDialer()
		c := stream.NewClient(dialer)

		c.Subscribe("run-1")
		dialer.next(t)
		require.NoError(t, c.Close())

		assert.Empty(t, c.Snapshot().Events)
		assert.Equal(t, triage.StateClosed, c.Snapshot().State)
	})
}

func TestClient_SubscribeEmptyClearsAndCloses(t *testing.T) {
	t.Parallel()

	dialer := newFakeDialer()
	c := stream.NewClient(dialer)
	defer c.Close()

	c.Subscribe("run-1")
	p := dialer.next(t)
	p.send(t, `{"kind":"message","text":"x"}`)
	waitEvents(t, c, 1)

	c.Subscribe("")

	snap := c.Snapshot()
	assert.Equal(t, triage.StateIdle, snap.State)
	assert.Empty(t, snap.Events)
	assert.Equal(t, []string{"dial run-1", "close run-1"}, dialer.rec.trace())
}

func TestClient_TeardownDuringDialCancelsIt(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	dialer := &mock.Dialer{
		DialFn: func(ctx context.Context, runID triage.RunID) (triage.Channel, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c := stream.NewClient(dialer)

	c.Subscribe("run-1")
	<-started
	require.NoError(t, c.Close())

	assert.Empty(t, c.Snapshot().Events)
	assert.Equal(t, triage.StateClosed, c.Snapshot().State)
}
