package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/audiodemo/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "audiodemo",
	Short: "Audio recording and playback demo",
	Long: `audiodemo records from the default input device and plays local files
or remote URLs through the default output device.

Run 'audiodemo ui' for the interactive screen, or use the one-shot
record/play commands and the HTTP control server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(os.Stderr, verboseLevel)

		explicit := cfgFile != ""
		path := cfgFile
		if !explicit {
			path = config.DefaultPath()
		}

		var err error
		cfg, err = config.Load(path, explicit)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		slog.Debug("Configuration loaded", "path", path, "audio_dir", cfg.AudioDir())
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/audiodemo.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=miniaudio tracing")

	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(tracksCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(lastCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(w io.Writer, level int) {
	var slogLevel slog.Level
	switch level {
	case 0:
		slogLevel = slog.LevelInfo
	case 1, 2:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(w, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// miniaudio logs every device transition at this level
	if level >= 2 {
		os.Setenv("AUDIODEMO_TRACE", "1")
	}
}
