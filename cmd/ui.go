package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/audiolibrelab/audiodemo/internal/ui"

	"github.com/spf13/cobra"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive recorder and player",
	Long: `Open the full-screen recorder and player.

Logs go to audiodemo.log in the recordings folder while the screen is up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(cfg.AudioDir(), 0755); err != nil {
			return fmt.Errorf("failed to create audio directory: %w", err)
		}
		logPath := filepath.Join(cfg.AudioDir(), "audiodemo.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()
		// the screen owns the terminal
		setupLogging(logFile, verboseLevel)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		notifier := &ui.Notifier{}
		a, err := newApp(notifier)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		return ui.Run(ctx, a.session, notifier)
	},
}
