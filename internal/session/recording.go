package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/audiolibrelab/audiodemo/internal/audio"
)

const timestampLayout = "20060102_150405"

// RecordingPath returns the file a recording started now would be written to
func (s *Session) RecordingPath() string {
	name := fmt.Sprintf("recording_%s.%s", s.clock.Now().Format(timestampLayout), s.container.Extension)
	return filepath.Join(s.audioDir, name)
}

// StartRecording begins a metered recording into the audio directory
func (s *Session) StartRecording(ctx context.Context) error {
	s.log.Debug("StartRecording called")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state.Phase != PhaseIdle || s.starting {
		phase := s.state.Phase
		s.mu.Unlock()
		return fmt.Errorf("start recording while %s: %w", phase, ErrBusy)
	}
	s.starting = true
	s.recordSeq++
	seq := s.recordSeq
	s.mu.Unlock()

	if !s.recorder.CanRecord() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
		s.alert(MsgCannotRecord)
		return ErrCannotRecord
	}
	s.clearLastError()

	path := s.RecordingPath()
	s.log.Debug("Recording file path", "file", path)

	err := os.MkdirAll(s.audioDir, 0755)
	if err == nil {
		err = s.recorder.Start(ctx, audio.RecorderOptions{
			OutputPath: path,
			Format:     s.container.Format,
			Encoder:    s.container.Encoder,
			Metering:   true,
			OnInfo: func(ev audio.InfoEvent) {
				s.log.Debug("Recorder info", "info", ev.Info, "extra", ev.Extra)
			},
			OnError: func(err error) {
				s.log.Error("Recorder error", "error", err)
				s.setLastError(fmt.Sprintf("Recorder error: %v", err))
			},
		})
	}

	s.mu.Lock()
	s.starting = false
	if err != nil {
		s.stopPollerLocked(metricMeter)
		s.unlockAndPublish()

		s.log.Error("StartRecording failed", "error", err)
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		s.alert(err.Error())
		return fmt.Errorf("start recording: %w", err)
	}
	if seq != s.recordSeq || s.closed {
		s.mu.Unlock()
		s.log.Debug("Recording start superseded, stopping", "file", path)
		if err := s.recorder.Stop(context.WithoutCancel(ctx)); err != nil {
			s.log.Error("Failed to stop superseded recording", "error", err)
		}
		return ErrStale
	}

	s.state.setPhase(PhaseRecording)
	s.state.LastRecording = path
	s.startPollerLocked(metricMeter, s.polling.Meter, s.readMeter)
	s.unlockAndPublish()

	s.log.Info("Recording started", "file", path)
	return nil
}

func (s *Session) readMeter() func(*State) {
	level := strconv.FormatFloat(s.recorder.Meters(), 'f', 1, 64)
	return func(st *State) {
		st.MeterLevel = level
	}
}

// StopRecording stops the meter immediately, then the recorder. The session
// leaves the recording phase whether or not the recorder stops cleanly.
func (s *Session) StopRecording(ctx context.Context) error {
	s.log.Debug("StopRecording called")

	s.mu.Lock()
	s.recordSeq++
	s.stopPollerLocked(metricMeter)
	s.unlockAndPublish()

	err := s.recorder.Stop(ctx)

	s.mu.Lock()
	if s.state.Phase == PhaseRecording {
		s.state.setPhase(PhaseIdle)
	}
	s.stopPollerLocked(metricMeter)
	s.unlockAndPublish()

	if err != nil {
		s.log.Error("StopRecording failed", "error", err)
		if !errors.Is(err, audio.ErrNotRecording) {
			s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		}
	}
	s.alert(MsgRecorderStop)

	if err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}
	return nil
}

// LastRecording publishes the most recent recording as RecordedFile and
// reports whether it exists on disk
func (s *Session) LastRecording() (string, bool) {
	s.mu.Lock()
	path := s.state.LastRecording
	s.state.RecordedFile = path
	s.unlockAndPublish()

	if path == "" {
		return "", false
	}
	_, err := os.Stat(path)
	exists := err == nil
	s.log.Debug("Last recording", "file", path, "exists", exists)
	return path, exists
}
