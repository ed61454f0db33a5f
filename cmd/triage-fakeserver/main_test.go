package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var logs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&logs)
	cmd.SetErr(&logs)
	cmd.SetArgs([]string{"--addr", "127.0.0.1:0", "--interval", "0s"})

	err := cmd.ExecuteContext(ctx)

	require.NoError(t, err)
	assert.Contains(t, logs.String(), "shutting down")
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "loud"})

	err := cmd.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "loud"`)
}
