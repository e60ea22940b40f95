package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/audiolibrelab/audiodemo/internal/session"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [file-or-url]",
	Short: "Play a local file, a URL or the last recording",
	Long: `Play audio through the default output device and wait until it ends.

Without an argument the configured local demo file is played. Use --remote
for the configured remote URL, --track for a catalog entry or --last for the
most recent recording.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetBool("remote")
		last, _ := cmd.Flags().GetBool("last")
		track, _ := cmd.Flags().GetInt("track")
		speed, _ := cmd.Flags().GetFloat64("speed")
		volume, _ := cmd.Flags().GetFloat64("volume")
		seek, _ := cmd.Flags().GetFloat64("seek")

		a, err := newApp(printNotifier{})
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		finished := waitForIdle(a.session)

		if err := startPlayback(ctx, a.session, args, remote, last, track); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}

		if cmd.Flags().Changed("volume") {
			a.session.SetSliderVolume(volume)
		}
		if speed != 1 {
			if err := a.session.SetSpeed(speed); err != nil {
				return err
			}
		}
		if seek > 0 {
			if err := a.session.SeekTo(seek); err != nil {
				return err
			}
		}

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-finished:
				return nil
			case <-ctx.Done():
				slog.Info("Stopping playback...")
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return a.session.StopPlaying(stopCtx)
			case <-ticker.C:
				st := a.session.Snapshot()
				if st.RemainingDuration != nil {
					slog.Info("Playing", "remaining", fmt.Sprintf("%.1fs", *st.RemainingDuration))
				}
			}
		}
	},
}

func startPlayback(ctx context.Context, sess *session.Session, args []string, remote, last bool, track int) error {
	switch {
	case len(args) == 1:
		source := args[0]
		if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
			return sess.PlayAudio(ctx, source, session.RemoteURL)
		}
		return sess.PlayAudio(ctx, source, session.LocalFile)
	case last:
		path, err := newestRecording(cfg.AudioDir())
		if err != nil {
			return err
		}
		return sess.PlayAudio(ctx, path, session.LocalFile)
	case track >= 0:
		return sess.PlayTrack(ctx, track)
	case remote:
		return sess.PlayRemoteFile(ctx)
	default:
		return sess.PlayLocalFile(ctx)
	}
}

// waitForIdle returns a channel closed once the session has played and come
// back to idle
func waitForIdle(sess *session.Session) <-chan struct{} {
	done := make(chan struct{})
	var (
		once    sync.Once
		started bool
	)
	sess.Subscribe(func(st session.State) {
		switch st.Phase {
		case session.PhasePlaying, session.PhasePaused:
			started = true
		case session.PhaseIdle:
			if started {
				once.Do(func() { close(done) })
			}
		}
	})
	return done
}

func init() {
	playCmd.Flags().Bool("remote", false, "play the configured remote URL")
	playCmd.Flags().Bool("last", false, "play the most recent recording")
	playCmd.Flags().Int("track", -1, "play the catalog track at this index")
	playCmd.Flags().Float64("speed", 1, "playback speed")
	playCmd.Flags().Float64("volume", 100, "volume slider value, 0-100")
	playCmd.Flags().Float64("seek", 0, "start position in seconds")
}
