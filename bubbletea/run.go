package bubbletea

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/triage"
)

// Relay forwards event stream snapshots into a running program. Its
// Observe method is meant to be registered as the stream's observer
// before the program exists.
type Relay struct {
	mu      sync.Mutex
	program *tea.Program
}

// Observe sends s to the attached program. Snapshots arriving while no
// program is attached are dropped.
func (r *Relay) Observe(s triage.Snapshot) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(StreamUpdateMsg{Snapshot: s})
	}
}

func (r *Relay) attach(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

// Run shows the console and blocks until the user quits or ctx is done.
func Run(ctx context.Context, m Model, relay *Relay, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	}, opts...)
	p := tea.NewProgram(m, opts...)
	relay.attach(p)
	defer relay.attach(nil)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
