package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the default input device",
	Long: `Record from the default input device into the recordings folder.
Recording stops on Ctrl+C, or after --duration when given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, _ := cmd.Flags().GetDuration("duration")

		a, err := newApp(printNotifier{})
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		if err := a.session.StartRecording(ctx); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		path, _ := a.session.LastRecording()
		slog.Info("Recording... Press Ctrl+C to stop", "file", path)

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
	wait:
		for {
			select {
			case <-ctx.Done():
				break wait
			case <-ticker.C:
				slog.Debug("Input level", "db", a.session.Snapshot().MeterLevel)
			}
		}

		slog.Info("Stopping recording...")
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.session.StopRecording(stopCtx); err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		path, exists := a.session.LastRecording()
		if !exists {
			return fmt.Errorf("recording was not written: %s", path)
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	recordCmd.Flags().Duration("duration", 0, "stop after this long (default: until Ctrl+C)")
}
