package mock

import (
	"context"

	"github.com/fwojciec/triage"
)

// Compile-time interface verification.
var _ triage.Backend = (*Backend)(nil)

// Backend is a mock implementation of triage.Backend.
type Backend struct {
	StartAnalysisFn   func(ctx context.Context, ticketID string) (triage.RunID, error)
	SaveCredentialsFn func(ctx context.Context, creds triage.Credentials) error
	FetchRCAFn        func(ctx context.Context, runID triage.RunID) (string, error)
	SuggestChangesFn  func(ctx context.Context, runID triage.RunID) (triage.DiffBundle, error)
}

func (b *Backend) StartAnalysis(ctx context.Context, ticketID string) (triage.RunID, error) {
	return b.StartAnalysisFn(ctx, ticketID)
}

func (b *Backend) SaveCredentials(ctx context.Context, creds triage.Credentials) error {
	return b.SaveCredentialsFn(ctx, creds)
}

func (b *Backend) FetchRCA(ctx context.Context, runID triage.RunID) (string, error) {
	return b.FetchRCAFn(ctx, runID)
}

func (b *Backend) SuggestChanges(ctx context.Context, runID triage.RunID) (triage.DiffBundle, error) {
	return b.SuggestChangesFn(ctx, runID)
}
