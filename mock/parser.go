// Package mock provides test doubles for triage interfaces.
package mock

import (
	"context"
	"io"

	"github.com/fwojciec/triage"
)

// Compile-time interface verification.
var _ triage.PatchSplitter = (*PatchSplitter)(nil)

// PatchSplitter is a mock implementation of triage.PatchSplitter.
type PatchSplitter struct {
	SplitFn func(r io.Reader) (triage.DiffBundle, error)
}

func (p *PatchSplitter) Split(r io.Reader) (triage.DiffBundle, error) {
	return p.SplitFn(r)
}

// Compile-time interface verification.
var _ triage.PatchSource = (*PatchSource)(nil)

// PatchSource is a mock implementation of triage.PatchSource.
type PatchSource struct {
	DiffFn func(ctx context.Context, repoPath string, revisions ...string) (string, error)
}

func (p *PatchSource) Diff(ctx context.Context, repoPath string, revisions ...string) (string, error) {
	return p.DiffFn(ctx, repoPath, revisions...)
}
