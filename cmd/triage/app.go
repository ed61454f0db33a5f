package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fwojciec/triage"
	"github.com/fwojciec/triage/bubbletea"
	"github.com/fwojciec/triage/jsonl"
	"github.com/fwojciec/triage/logging"
	"github.com/fwojciec/triage/stream"
	"golang.org/x/sync/errgroup"
)

// ErrNoChanges is returned when a patch contains no file changes.
var ErrNoChanges = errors.New("no changes to display")

// defaultWidth is used when the output is not a terminal.
const defaultWidth = 100

// App holds the logic behind the non-interactive commands.
type App struct {
	Out      io.Writer
	Backend  triage.Backend
	Dialer   triage.Dialer
	Splitter triage.PatchSplitter
	Git      triage.PatchSource
	Logger   *log.Logger

	// Width is the output width for rendered diffs and events.
	Width int
	// Render configures theme and highlighting of rendered output.
	Render []bubbletea.Option
}

// Analyze starts a run for ticket and prints its ID.
func (a *App) Analyze(ctx context.Context, ticket string) (triage.RunID, error) {
	runID, err := a.Backend.StartAnalysis(ctx, ticket)
	if err != nil {
		return "", err
	}
	fmt.Fprintln(a.Out, runID)
	return runID, nil
}

// Follow prints the events of runID as they arrive until its channel
// closes or ctx is done. With a non-empty record path, received events
// are also appended to that file in the replay format.
func (a *App) Follow(ctx context.Context, runID triage.RunID, record string) error {
	if runID == "" {
		return triage.ErrMissingRun
	}
	logger := logging.OrDiscard(a.Logger)

	var rec *jsonl.Recorder
	if record != "" {
		var err error
		rec, err = jsonl.NewRecorder(record)
		if err != nil {
			return fmt.Errorf("open recording: %w", err)
		}
		defer rec.Close()
	}

	done := make(chan struct{})
	var once sync.Once
	printed := 0

	// Observer calls are serialized by the client.
	observe := func(s triage.Snapshot) {
		if s.RunID != runID {
			return
		}
		if fresh := s.Events[min(printed, len(s.Events)):]; len(fresh) > 0 {
			io.WriteString(a.Out, bubbletea.RenderEvents(fresh, a.width(), a.Render...))
			for _, ev := range fresh {
				if rec == nil || ev.Kind == triage.KindSystem {
					continue
				}
				if err := rec.Record(ev); err != nil {
					logger.Warn("record event", "run", runID, "err", err)
				}
			}
			printed = len(s.Events)
		}
		if s.State == triage.StateClosed {
			once.Do(func() { close(done) })
		}
	}

	client := stream.NewClient(a.Dialer, stream.WithObserver(observe), stream.WithLogger(logger))
	defer client.Close()
	client.Subscribe(runID)

	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}

// RCA prints the root-cause analysis of runID.
func (a *App) RCA(ctx context.Context, runID triage.RunID) error {
	if runID == "" {
		return triage.ErrMissingRun
	}
	rca, err := a.Backend.FetchRCA(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, rca)
	return nil
}

// Changes requests suggested changes for runID and prints them side by side.
func (a *App) Changes(ctx context.Context, runID triage.RunID) error {
	if runID == "" {
		return triage.ErrMissingRun
	}
	bundle, err := a.Backend.SuggestChanges(ctx, runID)
	if err != nil {
		return err
	}
	a.printChanges(bundle)
	return nil
}

// Report prints the RCA and the suggested changes of runID. Both are
// requested concurrently; the first failure cancels the other request.
func (a *App) Report(ctx context.Context, runID triage.RunID) error {
	if runID == "" {
		return triage.ErrMissingRun
	}

	var (
		rca    string
		bundle triage.DiffBundle
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rca, err = a.Backend.FetchRCA(ctx, runID)
		return err
	})
	g.Go(func() error {
		var err error
		bundle, err = a.Backend.SuggestChanges(ctx, runID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "Root cause (run %s)\n\n%s\n\n", runID, strings.TrimRight(rca, "\n"))
	fmt.Fprint(a.Out, "Suggested changes\n\n")
	a.printChanges(bundle)
	return nil
}

// Configure saves tracker credentials on the analysis service.
func (a *App) Configure(ctx context.Context, creds triage.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	if err := a.Backend.SaveCredentials(ctx, creds.Trimmed()); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Saved")
	return nil
}

// Diff splits a local multi-file patch read from r and prints it the way
// suggested changes are shown.
func (a *App) Diff(r io.Reader) error {
	bundle, err := a.Splitter.Split(r)
	if err != nil {
		return err
	}
	if len(bundle) == 0 {
		return ErrNoChanges
	}
	a.printChanges(bundle)
	return nil
}

// GitDiff shows the patch git produces for the repository at dir, for the
// working tree or for the given revisions.
func (a *App) GitDiff(ctx context.Context, dir string, revisions ...string) error {
	patch, err := a.Git.Diff(ctx, dir, revisions...)
	if err != nil {
		return err
	}
	return a.Diff(strings.NewReader(patch))
}

func (a *App) printChanges(bundle triage.DiffBundle) {
	if len(bundle) == 0 {
		fmt.Fprintln(a.Out, bubbletea.NoChangesText)
		return
	}
	io.WriteString(a.Out, bubbletea.RenderChanges(bundle, a.width(), a.Render...))
}

func (a *App) width() int {
	if a.Width > 0 {
		return a.Width
	}
	return defaultWidth
}
