package mock

import "github.com/fwojciec/triage"

// Compile-time interface verification.
var _ triage.Clipboard = (*Clipboard)(nil)

// Clipboard is a mock implementation of triage.Clipboard.
type Clipboard struct {
	CopyFn func(text string) error
}

func (c *Clipboard) Copy(text string) error {
	return c.CopyFn(text)
}
