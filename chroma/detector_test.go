package chroma_test

import (
	"testing"

	"github.com/fwojciec/triage/chroma"
	"github.com/stretchr/testify/assert"
)

func TestDetector_DetectFromPath(t *testing.T) {
	t.Parallel()

	detector := chroma.NewDetector()

	cases := []struct {
		path string
		want string
	}{
		{"internal/order/worker.go", "Go"},
		{"b/src/foo.go", "Go"},
		{"a/src/foo.go", "Go"},
		{"app.py", "Python"},
		{"src/components/RCAView.tsx", "TypeScript"},
		{"lib.rs", "Rust"},
		{"main.js", "JavaScript"},
		{"file.unknownext", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, detector.DetectFromPath(tc.path), "path: %s", tc.path)
	}
}

func TestDetector_Detect(t *testing.T) {
	t.Parallel()

	detector := chroma.NewDetector()

	t.Run("path wins", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "Go", detector.Detect("main.go", "#!/bin/bash\necho hi\n"))
	})

	t.Run("falls back to content", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "Bash", detector.Detect("scripts/deploy", "#!/bin/bash\necho hi\n"))
	})

	t.Run("unknown without content", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, detector.Detect("LICENSE", ""))
	})
}
