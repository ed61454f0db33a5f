package main_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/triage"
	main "github.com/fwojciec/triage/cmd/triage"
	"github.com/fwojciec/triage/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns a dialer whose channels deliver payloads, then end.
func scripted(payloads ...string) *mock.Dialer {
	return &mock.Dialer{
		DialFn: func(ctx context.Context, runID triage.RunID) (triage.Channel, error) {
			var mu sync.Mutex
			next := 0
			return &mock.Channel{
				RecvFn: func() (string, error) {
					mu.Lock()
					defer mu.Unlock()
					if next == len(payloads) {
						return "", io.EOF
					}
					next++
					return payloads[next-1], nil
				},
				CloseFn: func() error { return nil },
			}, nil
		},
	}
}

func TestApp_Analyze_PrintsRunID(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	var gotTicket string
	app := &main.App{
		Out: &out,
		Backend: &mock.Backend{
			StartAnalysisFn: func(ctx context.Context, ticketID string) (triage.RunID, error) {
				gotTicket = ticketID
				return "run-9", nil
			},
		},
	}

	runID, err := app.Analyze(context.Background(), "OPS-12")

	require.NoError(t, err)
	assert.Equal(t, triage.RunID("run-9"), runID)
	assert.Equal(t, "OPS-12", gotTicket)
	assert.Equal(t, "run-9\n", out.String())
}

func TestApp_Analyze_Error(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := &main.App{
		Out: &out,
		Backend: &mock.Backend{
			StartAnalysisFn: func(ctx context.Context, ticketID string) (triage.RunID, error) {
				return "", &triage.Error{Op: "analyze", Message: "Server returned 503"}
			},
		},
	}

	_, err := app.Analyze(context.Background(), "OPS-12")

	require.EqualError(t, err, "Server returned 503")
	assert.Empty(t, out.String())
}

func TestApp_Follow_PrintsEventsUntilClosed(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := &main.App{
		Out:    &out,
		Dialer: scripted(`{"kind":"message","text":"Fetching OPS-12"}`, "heartbeat", `{"kind":"error","text":"log source timed out"}`),
		Width:  80,
	}

	err := app.Follow(context.Background(), "run-9", "")

	require.NoError(t, err)
	text := out.String()
	assert.Contains(t, text, "Fetching OPS-12")
	assert.Contains(t, text, "heartbeat")
	assert.Contains(t, text, "log source timed out")
	assert.Contains(t, text, triage.ClosedText)
	assert.Less(t, strings.Index(text, "Fetching OPS-12"), strings.Index(text, "heartbeat"))
	assert.Equal(t, 1, strings.Count(text, triage.ClosedText))
}

func TestApp_Follow_DialFailure(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := &main.App{
		Out: &out,
		Dialer: &mock.Dialer{
			DialFn: func(ctx context.Context, runID triage.RunID) (triage.Channel, error) {
				return nil, errors.New("connection refused")
			},
		},
	}

	err := app.Follow(context.Background(), "run-9", "")

	require.NoError(t, err)
	assert.Contains(t, out.String(), triage.ClosedText)
}

func TestApp_Follow_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	var closed atomic.Bool
	app := &main.App{
		Out: io.Discard,
		Dialer: &mock.Dialer{
			DialFn: func(ctx context.Context, runID triage.RunID) (triage.Channel, error) {
				stop := make(chan struct{})
				var once sync.Once
				return &mock.Channel{
					RecvFn: func() (string, error) {
						<-stop
						return "", io.EOF
					},
					CloseFn: func() error {
						closed.Store(true)
						once.Do(func() { close(stop) })
						return nil
					},
				}, nil
			},
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := app.Follow(ctx, "run-9", "")

	require.NoError(t, err)
	assert.True(t, closed.Load(), "channel should be closed on return")
}

func TestApp_Follow_RecordsReplayableEvents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs", "run-9.jsonl")
	app := &main.App{
		Out:    io.Discard,
		Dialer: scripted(`{"kind":"message","text":"one"}`, "plain text"),
	}

	err := app.Follow(context.Background(), "run-9", path)

	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		`{"kind":"message","text":"one"}`+"\n"+`{"kind":"raw","text":"plain text"}`+"\n",
		string(data))
}

func TestApp_Follow_RequiresRun(t *testing.T) {
	t.Parallel()

	app := &main.App{Out: io.Discard}

	err := app.Follow(context.Background(), "", "")

	assert.ErrorIs(t, err, triage.ErrMissingRun)
}

func TestApp_RCA(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := &main.App{
		Out: &out,
		Backend: &mock.Backend{
			FetchRCAFn: func(ctx context.Context, runID triage.RunID) (string, error) {
				assert.Equal(t, triage.RunID("run-9"), runID)
				return "Stale cache entry reused on retry.", nil
			},
		},
	}

	err := app.RCA(context.Background(), "run-9")

	require.NoError(t, err)
	assert.Equal(t, "Stale cache entry reused on retry.\n", out.String())
}

func TestApp_Changes_Empty(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := &main.App{
		Out: &out,
		Backend: &mock.Backend{
			SuggestChangesFn: func(ctx context.Context, runID triage.RunID) (triage.DiffBundle, error) {
				return triage.DiffBundle{}, nil
			},
		},
	}

	err := app.Changes(context.Background(), "run-9")

	require.NoError(t, err)
	assert.Equal(t, "No suggested changes yet.\n", out.String())
}

func TestApp_Changes_RendersSideBySide(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := &main.App{
		Out:   &out,
		Width: 60,
		Backend: &mock.Backend{
			SuggestChangesFn: func(ctx context.Context, runID triage.RunID) (triage.DiffBundle, error) {
				return triage.DiffBundle{"cache.go": {Changes: "-ttl := 24\n+ttl := 5\n"}}, nil
			},
		},
	}

	err := app.Changes(context.Background(), "run-9")

	require.NoError(t, err)
	text := out.String()
	assert.Contains(t, text, "── cache.go ")
	assert.Contains(t, text, "+1 -1 ──")
	assert.Contains(t, text, "-ttl := 24")
	assert.Contains(t, text, "+ttl := 5")
}

func TestApp_Report_FetchesBoth(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := &main.App{
		Out: &out,
		Backend: &mock.Backend{
			FetchRCAFn: func(ctx context.Context, runID triage.RunID) (string, error) {
				return "Retry reads a stale entry.", nil
			},
			SuggestChangesFn: func(ctx context.Context, runID triage.RunID) (triage.DiffBundle, error) {
				return triage.DiffBundle{"worker.go": {Changes: "+reload()\n"}}, nil
			},
		},
	}

	err := app.Report(context.Background(), "run-9")

	require.NoError(t, err)
	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Root cause (run run-9)\n\nRetry reads a stale entry.\n"))
	assert.Less(t, strings.Index(text, "Suggested changes"), strings.Index(text, "worker.go"))
}

func TestApp_Report_FailureCancelsOtherRequest(t *testing.T) {
	t.Parallel()

	app := &main.App{
		Out: io.Discard,
		Backend: &mock.Backend{
			FetchRCAFn: func(ctx context.Context, runID triage.RunID) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			SuggestChangesFn: func(ctx context.Context, runID triage.RunID) (triage.DiffBundle, error) {
				return nil, &triage.Error{Op: "suggest", Message: "run not found"}
			},
		},
	}

	err := app.Report(context.Background(), "run-9")

	require.EqualError(t, err, "run not found")
}

func TestApp_Configure(t *testing.T) {
	t.Parallel()

	t.Run("saves trimmed credentials", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		var saved triage.Credentials
		app := &main.App{
			Out: &out,
			Backend: &mock.Backend{
				SaveCredentialsFn: func(ctx context.Context, creds triage.Credentials) error {
					saved = creds
					return nil
				},
			},
		}

		err := app.Configure(context.Background(), triage.Credentials{Username: " ana@example.com ", APIKey: " k-1 "})

		require.NoError(t, err)
		assert.Equal(t, triage.Credentials{Username: "ana@example.com", APIKey: "k-1"}, saved)
		assert.Equal(t, "Saved\n", out.String())
	})

	t.Run("rejects missing fields before calling the service", func(t *testing.T) {
		t.Parallel()

		app := &main.App{Out: io.Discard, Backend: &mock.Backend{}}

		err := app.Configure(context.Background(), triage.Credentials{Username: "ana"})

		assert.ErrorIs(t, err, triage.ErrMissingCredentials)
	})
}

func TestApp_Diff(t *testing.T) {
	t.Parallel()

	t.Run("renders split patch", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		var read string
		app := &main.App{
			Out: &out,
			Splitter: &mock.PatchSplitter{
				SplitFn: func(r io.Reader) (triage.DiffBundle, error) {
					data, _ := io.ReadAll(r)
					read = string(data)
					return triage.DiffBundle{"a.txt": {Changes: "@@ -1 +1 @@\n-a\n+b\n"}}, nil
				},
			},
		}

		err := app.Diff(strings.NewReader("patch"))

		require.NoError(t, err)
		assert.Equal(t, "patch", read)
		assert.Contains(t, out.String(), "a.txt")
	})

	t.Run("empty patch", func(t *testing.T) {
		t.Parallel()

		app := &main.App{
			Out: io.Discard,
			Splitter: &mock.PatchSplitter{
				SplitFn: func(r io.Reader) (triage.DiffBundle, error) {
					return triage.DiffBundle{}, nil
				},
			},
		}

		err := app.Diff(strings.NewReader(""))

		assert.ErrorIs(t, err, main.ErrNoChanges)
	})

	t.Run("split error", func(t *testing.T) {
		t.Parallel()

		splitErr := errors.New("parse patch: bad hunk")
		app := &main.App{
			Out: io.Discard,
			Splitter: &mock.PatchSplitter{
				SplitFn: func(r io.Reader) (triage.DiffBundle, error) {
					return nil, splitErr
				},
			},
		}

		err := app.Diff(strings.NewReader("x"))

		assert.Equal(t, splitErr, err)
	})
}

func TestApp_GitDiff(t *testing.T) {
	t.Parallel()

	var gotDir string
	var gotRevs []string
	var split string
	app := &main.App{
		Out: io.Discard,
		Git: &mock.PatchSource{
			DiffFn: func(ctx context.Context, repoPath string, revisions ...string) (string, error) {
				gotDir, gotRevs = repoPath, revisions
				return "diff --git a/x b/x\n", nil
			},
		},
		Splitter: &mock.PatchSplitter{
			SplitFn: func(r io.Reader) (triage.DiffBundle, error) {
				data, _ := io.ReadAll(r)
				split = string(data)
				return triage.DiffBundle{"x": {Changes: "+y\n"}}, nil
			},
		},
	}

	err := app.GitDiff(context.Background(), "/src/app", "HEAD~1")

	require.NoError(t, err)
	assert.Equal(t, "/src/app", gotDir)
	assert.Equal(t, []string{"HEAD~1"}, gotRevs)
	assert.Equal(t, "diff --git a/x b/x\n", split)
}
