package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/audiodemo/internal/audio"
	"github.com/audiolibrelab/audiodemo/internal/session"
)

// app bundles the audio backend with the session built on it
type app struct {
	backend audio.Backend
	session *session.Session
}

// newApp opens the configured backend and creates a session owning one
// player and one recorder from it
func newApp(notifier session.Notifier) (*app, error) {
	backend, err := audio.NewBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio backend: %w", err)
	}
	slog.Debug("Audio backend ready", "backend", backend.GetType())

	sess := session.New(cfg, backend.NewPlayer(), backend.NewRecorder(), session.Options{
		Notifier: notifier,
		Logger:   slog.Default(),
	})
	return &app{backend: backend, session: sess}, nil
}

func (a *app) close(ctx context.Context) error {
	return errors.Join(a.session.Close(ctx), a.backend.Close())
}

// printNotifier writes alerts to stdout for the one-shot commands
type printNotifier struct{}

func (printNotifier) Alert(msg string) {
	fmt.Printf("🔔 %s\n", msg)
}
