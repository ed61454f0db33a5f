package triage

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
)

// Validation errors, detected before any request is made.
var (
	ErrMissingTicket      = errors.New("Please enter a Jira ID.")
	ErrMissingRun         = errors.New("no run selected")
	ErrMissingCredentials = errors.New("Username and API Key are required.")
	ErrNoRunID            = errors.New("Server did not return runId")
)

// NoRCAText is shown when the server answers without RCA content.
const NoRCAText = "(no RCA returned)"

// Error is a failure reported by the analysis service or the network.
// Message is human readable and shown to the operator as-is.
type Error struct {
	Op      string // e.g. "analyze", "rca"
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Credentials authenticate the analysis service against the ticket tracker.
type Credentials struct {
	Username string `json:"username"`
	APIKey   string `json:"apiKey"`
}

// Trimmed returns the credentials with surrounding whitespace removed.
func (c Credentials) Trimmed() Credentials {
	return Credentials{
		Username: strings.TrimSpace(c.Username),
		APIKey:   strings.TrimSpace(c.APIKey),
	}
}

// Validate returns ErrMissingCredentials unless both fields are set.
func (c Credentials) Validate() error {
	t := c.Trimmed()
	if t.Username == "" || t.APIKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

// FileChange is the raw change text suggested for one file.
type FileChange struct {
	Changes string `json:"changes"`
}

// DiffBundle maps file paths to suggested changes. A new bundle always
// replaces the previous one.
type DiffBundle map[string]FileChange

// Paths returns the bundle's file paths in sorted order.
func (b DiffBundle) Paths() []string {
	paths := make([]string, 0, len(b))
	for p := range b {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Analyzer starts analysis runs.
type Analyzer interface {
	StartAnalysis(ctx context.Context, ticketID string) (RunID, error)
}

// CredentialStore saves tracker credentials on the analysis service.
type CredentialStore interface {
	SaveCredentials(ctx context.Context, creds Credentials) error
}

// RCAFetcher reads the root-cause analysis of a run.
type RCAFetcher interface {
	FetchRCA(ctx context.Context, runID RunID) (string, error)
}

// ChangeSuggester requests suggested code changes for a run.
type ChangeSuggester interface {
	SuggestChanges(ctx context.Context, runID RunID) (DiffBundle, error)
}

// Backend is the full analysis service API.
type Backend interface {
	Analyzer
	CredentialStore
	RCAFetcher
	ChangeSuggester
}

// PatchSplitter turns a multi-file patch into per-file change blobs.
type PatchSplitter interface {
	Split(r io.Reader) (DiffBundle, error)
}

// PatchSource produces a unified patch from a local repository.
type PatchSource interface {
	Diff(ctx context.Context, repoPath string, revisions ...string) (string, error)
}
