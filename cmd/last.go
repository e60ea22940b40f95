package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the most recent recording and resolved paths",
	Long:  `Display the newest recording in the recordings folder together with the resolved directories and playback sources.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.AudioDir()

		fmt.Printf("=== FILE PATHS ===\n")
		fmt.Printf("audio_dir: %s\n", dir)
		fmt.Printf("local_file: %s\n", cfg.LocalFile())
		fmt.Printf("remote_url: %s\n", cfg.Playback.RemoteURL)

		fmt.Printf("\n=== LAST RECORDING ===\n")
		recordings, err := listRecordings(dir)
		if err != nil {
			return err
		}
		if len(recordings) == 0 {
			fmt.Printf("none\n")
			return nil
		}
		newest := recordings[0]
		fmt.Printf("file: %s\n", newest.path)
		fmt.Printf("size: %d bytes\n", newest.size)
		fmt.Printf("recorded: %s\n", newest.modTime.Format(time.DateTime))
		fmt.Printf("total: %d recording(s)\n", len(recordings))
		return nil
	},
}

type recordingFile struct {
	path    string
	size    int64
	modTime time.Time
}

// listRecordings returns recording_* files in dir, newest first. A missing
// directory has no recordings.
func listRecordings(dir string) ([]recordingFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audio directory: %w", err)
	}

	var files []recordingFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "recording_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, recordingFile{
			path:    filepath.Join(dir, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	// names embed a sortable timestamp
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i].path) > filepath.Base(files[j].path)
	})
	return files, nil
}

func newestRecording(dir string) (string, error) {
	files, err := listRecordings(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no recordings in %s", dir)
	}
	return files[0].path, nil
}
