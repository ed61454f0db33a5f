// Package clipboard copies text to the system clipboard.
package clipboard

import (
	"io"

	"github.com/atotto/clipboard"
	"github.com/fwojciec/triage"
	"github.com/muesli/termenv"
)

// Compile-time interface verification.
var (
	_ triage.Clipboard = (*System)(nil)
	_ triage.Clipboard = (*OSC52)(nil)
)

// System copies through the platform clipboard tool (pbcopy, xclip,
// xsel, wl-copy or the Windows API). When none is available it falls
// back to Fallback.
type System struct {
	Fallback triage.Clipboard
}

// NewSystem returns a System clipboard falling back to OSC 52 on out.
func NewSystem(out io.Writer) *System {
	return &System{Fallback: &OSC52{Out: out}}
}

// Copy writes content to the clipboard.
func (s *System) Copy(content string) error {
	if clipboard.Unsupported && s.Fallback != nil {
		return s.Fallback.Copy(content)
	}
	return clipboard.WriteAll(content)
}

// OSC52 asks the terminal to set its clipboard with an OSC 52 escape
// sequence, which also works over SSH.
type OSC52 struct {
	Out io.Writer
}

// Copy writes the escape sequence for content to Out.
func (o *OSC52) Copy(content string) error {
	termenv.NewOutput(o.Out).Copy(content)
	return nil
}
