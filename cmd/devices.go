package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/audiodemo/internal/audio"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available audio devices",
	Long:  `List the capture and playback devices the audio backend can see.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := audio.NewBackend(cfg)
		if err != nil {
			return fmt.Errorf("failed to open audio backend: %w", err)
		}
		defer backend.Close()

		devices, err := backend.ListDevices()
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}

		fmt.Printf("🎵 Audio Devices (%s, %s)\n", runtime.GOOS, backend.GetType())
		fmt.Printf("═══════════════════════════════════════\n\n")
		printDevices("CAPTURE", devices, true)
		printDevices("PLAYBACK", devices, false)
		return nil
	},
}

func printDevices(title string, devices []audio.DeviceInfo, capture bool) {
	var matched []audio.DeviceInfo
	for _, d := range devices {
		if d.Capture == capture {
			matched = append(matched, d)
		}
	}
	fmt.Printf("📋 %s DEVICES (%d found):\n", title, len(matched))
	for i, d := range matched {
		marker := ""
		if d.IsDefault {
			marker = " (default)"
		}
		fmt.Printf("  %d. %s%s\n", i+1, d.Name, marker)
	}
	fmt.Println()
}
