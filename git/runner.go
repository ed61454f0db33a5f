// Package git produces patches from a local repository via the git CLI.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/fwojciec/triage"
)

// Compile-time interface verification.
var _ triage.PatchSource = (*Runner)(nil)

// Runner executes git commands via shell.
type Runner struct{}

// NewRunner creates a new git runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Diff returns the patch of the repository at repoPath. Without revisions
// it is the uncommitted change of the working tree; revisions are passed
// to git diff as-is, so "HEAD~1" or "main...feature" work.
func (r *Runner) Diff(ctx context.Context, repoPath string, revisions ...string) (string, error) {
	args := append([]string{"-C", repoPath, "diff", "--no-color", "--no-ext-diff"}, revisions...)
	cmd := exec.CommandContext(ctx, "git", args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git diff failed: %s", exitErr.Stderr)
		}
		return "", fmt.Errorf("git diff failed: %w", err)
	}
	return string(output), nil
}
