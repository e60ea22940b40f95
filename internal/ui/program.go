package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/audiolibrelab/audiodemo/internal/session"
)

// Notifier shows session alerts on the screen once a program is attached.
// Before that, alerts go to the log.
type Notifier struct {
	mu      sync.Mutex
	program *tea.Program
}

func (n *Notifier) attach(p *tea.Program) {
	n.mu.Lock()
	n.program = p
	n.mu.Unlock()
}

func (n *Notifier) Alert(msg string) {
	n.mu.Lock()
	p := n.program
	n.mu.Unlock()

	slog.Info("Alert", "message", msg)
	if p != nil {
		p.Send(AlertMsg{Text: msg})
	}
}

// Run shows the screen for sess until the user quits or ctx is cancelled.
// notifier must be the one the session was created with.
func Run(ctx context.Context, sess *session.Session, notifier *Notifier, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(newModel(ctx, sess), opts...)

	notifier.attach(p)
	defer notifier.attach(nil)

	cancel := sess.Subscribe(func(st session.State) {
		p.Send(StateMsg(st))
	})
	defer cancel()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
