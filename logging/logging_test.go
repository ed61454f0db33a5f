package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/triage/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("filters below level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := logging.New(&buf, "warn")
		require.NoError(t, err)

		logger.Info("hidden")
		logger.Warn("shown", "run", "run-1")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
		assert.Contains(t, buf.String(), "run=run-1")
	})

	t.Run("defaults to info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := logging.New(&buf, "")
		require.NoError(t, err)

		logger.Debug("debug line")
		logger.Info("info line")

		assert.NotContains(t, buf.String(), "debug line")
		assert.Contains(t, buf.String(), "info line")
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		t.Parallel()

		_, err := logging.New(&bytes.Buffer{}, "loud")

		require.Error(t, err)
	})
}

func TestOrDiscard(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, logging.OrDiscard(nil))

	l := logging.Discard()
	assert.Same(t, l, logging.OrDiscard(l))
}

func TestOpenFile_CreatesDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "triage.log")

	f, err := logging.OpenFile(path)
	require.NoError(t, err)
	_, err = f.WriteString("hello\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
