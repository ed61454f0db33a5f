// Package jsonl replays and records run event logs as JSONL files.
package jsonl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/triage"
)

// Compile-time interface verification.
var (
	_ triage.Dialer  = (*Dialer)(nil)
	_ triage.Channel = (*Channel)(nil)
)

// maxLineSize is the maximum size of a single recorded payload (4MB).
const maxLineSize = 4 * 1024 * 1024

// ErrClosed is returned by Recv after Close.
var ErrClosed = errors.New("replay closed")

// Dialer replays {Dir}/{runID}.jsonl, one payload per non-blank line.
type Dialer struct {
	Dir string

	// Delay is waited before each payload.
	Delay time.Duration
}

// NewDialer returns a Dialer reading recordings from dir.
func NewDialer(dir string, delay time.Duration) *Dialer {
	return &Dialer{Dir: dir, Delay: delay}
}

// Path returns the recording path for runID.
func (d *Dialer) Path(runID triage.RunID) string {
	return filepath.Join(d.Dir, filepath.Base(string(runID))+".jsonl")
}

// Dial opens the recording for runID. Canceling ctx closes the channel.
func (d *Dialer) Dial(ctx context.Context, runID triage.RunID) (triage.Channel, error) {
	f, err := os.Open(d.Path(runID))
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	c := &Channel{
		file:    f,
		scanner: scanner,
		delay:   d.Delay,
		done:    make(chan struct{}),
	}
	c.stop = context.AfterFunc(ctx, func() { c.closeReplay() })
	return c, nil
}

// Channel delivers the lines of one recording. The end of the file is
// reported as io.EOF.
type Channel struct {
	file    *os.File
	scanner *bufio.Scanner
	delay   time.Duration
	stop    func() bool

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Recv waits for the configured delay and returns the next non-blank line.
func (c *Channel) Recv() (string, error) {
	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		select {
		case <-timer.C:
		case <-c.done:
			timer.Stop()
			return "", ErrClosed
		}
	}
	for {
		select {
		case <-c.done:
			return "", ErrClosed
		default:
		}
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		line := strings.TrimSpace(c.scanner.Text())
		if line != "" {
			return line, nil
		}
	}
}

// Close ends the replay. It is safe to call more than once.
func (c *Channel) Close() error {
	c.stop()
	return c.closeReplay()
}

// closeReplay releases the file. It never touches stop, which may not be
// assigned yet when ctx is canceled during Dial.
func (c *Channel) closeReplay() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.file.Close()
	})
	return c.closeErr
}
