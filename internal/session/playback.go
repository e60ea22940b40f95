package session

import (
	"context"
	"fmt"

	"github.com/audiolibrelab/audiodemo/internal/audio"
)

// PlayLocalFile plays the configured bundled file
func (s *Session) PlayLocalFile(ctx context.Context) error {
	return s.PlayAudio(ctx, s.localFile, LocalFile)
}

// PlayRemoteFile plays the configured remote URL
func (s *Session) PlayRemoteFile(ctx context.Context) error {
	return s.PlayAudio(ctx, s.remoteURL, RemoteURL)
}

// PlayTrack streams catalog entry index
func (s *Session) PlayTrack(ctx context.Context, index int) error {
	if index < 0 || index >= len(s.tracks) {
		return fmt.Errorf("track %d out of range [0, %d)", index, len(s.tracks))
	}
	t := s.tracks[index]
	s.log.Debug("Playing catalog track", "index", index, "name", t.Name)
	return s.PlayAudio(ctx, t.URL, RemoteURL)
}

// PlayRecordedFile plays the last recording. Unlike PlayLocalFile it does not
// track duration or volume.
func (s *Session) PlayRecordedFile(ctx context.Context) error {
	s.mu.Lock()
	path := s.state.LastRecording
	s.mu.Unlock()
	if path == "" {
		return fmt.Errorf("play recorded file: no recording yet")
	}
	return s.playAudio(ctx, path, LocalFile, false)
}

// PlayAudio starts playback of source. IsPlaying is set before the player is
// called and rolled back if it rejects the source.
func (s *Session) PlayAudio(ctx context.Context, source string, kind SourceKind) error {
	return s.playAudio(ctx, source, kind, kind == LocalFile)
}

func (s *Session) playAudio(ctx context.Context, source string, kind SourceKind, track bool) error {
	s.log.Debug("PlayAudio called", "source", source, "kind", kind)

	if kind != LocalFile && kind != RemoteURL {
		return fmt.Errorf("unknown source kind %q", kind)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state.Phase != PhaseIdle || s.starting {
		phase := s.state.Phase
		s.mu.Unlock()
		return fmt.Errorf("play while %s: %w", phase, ErrBusy)
	}
	s.starting = true
	s.playSeq++
	seq := s.playSeq
	s.state.setPhase(PhasePlaying)
	s.state.TrackDuration = nil
	s.state.RemainingDuration = nil
	s.unlockAndPublish()

	s.clearLastError()
	loop := s.loop
	opts := audio.PlayerOptions{
		Source:     source,
		Loop:       loop,
		OnComplete: func() { s.onComplete(seq, loop) },
		OnError:    func(err error) { s.onPlayerError(seq, err) },
		OnInfo:     func(ev audio.InfoEvent) { s.onPlayerInfo(seq, ev) },
	}

	var err error
	if kind == LocalFile {
		err = s.player.PlayFromFile(ctx, opts)
	} else {
		err = s.player.PlayFromURL(ctx, opts)
	}

	s.mu.Lock()
	s.starting = false
	if err != nil {
		if seq == s.playSeq {
			s.state.setPhase(PhaseIdle)
		}
		s.unlockAndPublish()

		s.log.Error("PlayAudio failed", "source", source, "error", err)
		s.setLastError(fmt.Sprintf("Failed to play audio: %v", err))
		return fmt.Errorf("play %s: %w", source, err)
	}
	if seq != s.playSeq || s.closed {
		s.mu.Unlock()
		s.log.Debug("Playback start superseded, disposing", "source", source)
		if err := s.player.Dispose(context.WithoutCancel(ctx)); err != nil {
			s.log.Error("Failed to dispose superseded player", "error", err)
		}
		return ErrStale
	}
	s.loaded = true
	s.mu.Unlock()

	s.log.Info("Playback started", "source", source, "kind", kind)
	if track {
		s.startTracking(ctx, seq)
	}
	return nil
}

// startTracking fetches the track length and starts the duration and volume
// trackers. The duration tracker only runs if the player is already playing.
func (s *Session) startTracking(ctx context.Context, seq uint64) {
	total, err := s.player.Duration(ctx)
	if err != nil {
		s.log.Error("Failed to get track duration", "error", err)
	}
	playing := s.player.IsPlaying()

	s.mu.Lock()
	if seq != s.playSeq || !s.loaded {
		s.mu.Unlock()
		return
	}
	if err == nil {
		s.state.TrackDuration = floatPtr(total)
		s.state.RemainingDuration = floatPtr(total)
		if playing {
			s.startPollerLocked(metricDuration, s.polling.Duration, func() func(*State) {
				remaining := total - s.player.CurrentTime()
				return func(st *State) { st.RemainingDuration = floatPtr(remaining) }
			})
		}
	}
	s.startPollerLocked(metricVolume, s.polling.Volume, func() func(*State) {
		v := s.player.Volume()
		return func(st *State) { st.CurrentVolume = v }
	})
	s.unlockAndPublish()
}

func (s *Session) onComplete(seq uint64, loop bool) {
	s.mu.Lock()
	if seq != s.playSeq {
		s.mu.Unlock()
		s.log.Debug("Ignoring stale completion", "seq", seq)
		return
	}
	if s.state.Phase == PhasePlaying || s.state.Phase == PhasePaused {
		s.state.setPhase(PhaseIdle)
	}
	s.stopTrackersLocked()
	if !loop {
		s.loaded = false
	}
	s.unlockAndPublish()

	s.alert(MsgAudioComplete)
	if loop {
		return
	}
	if err := s.player.Dispose(context.Background()); err != nil {
		s.log.Error("Failed to dispose player", "error", err)
		return
	}
	s.log.Debug("Player disposed")
}

func (s *Session) onPlayerError(seq uint64, err error) {
	s.log.Error("Player error", "error", err)

	s.mu.Lock()
	if seq != s.playSeq {
		s.mu.Unlock()
		return
	}
	if s.state.Phase == PhasePlaying || s.state.Phase == PhasePaused {
		s.state.setPhase(PhaseIdle)
	}
	s.stopTrackersLocked()
	s.unlockAndPublish()

	s.setLastError(fmt.Sprintf("Player error: %v", err))
}

func (s *Session) onPlayerInfo(seq uint64, ev audio.InfoEvent) {
	s.log.Debug("Player info", "info", ev.Info, "extra", ev.Extra)

	s.mu.Lock()
	stale := seq != s.playSeq
	s.mu.Unlock()
	if stale {
		return
	}
	s.alert(msgInfoPrefix + ev.Info)
}

// Pause pauses playback. If the player refuses, playback is still considered
// active. A track that ends while the pause is in flight stays idle.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	if s.starting {
		s.mu.Unlock()
		return fmt.Errorf("pause while starting: %w", ErrBusy)
	}
	if s.state.Phase != PhasePlaying {
		s.mu.Unlock()
		return ErrNotPlaying
	}
	seq := s.playSeq
	s.mu.Unlock()

	err := s.player.Pause(ctx)
	if err != nil {
		s.log.Error("Pause failed", "error", err)
		return fmt.Errorf("pause: %w", err)
	}

	s.mu.Lock()
	if seq != s.playSeq || s.state.Phase != PhasePlaying {
		s.mu.Unlock()
		return ErrStale
	}
	s.state.setPhase(PhasePaused)
	s.unlockAndPublish()
	return nil
}

// Resume continues a paused track from its position
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state.Phase != PhasePaused {
		s.mu.Unlock()
		return ErrNotPaused
	}
	s.mu.Unlock()

	if err := s.player.Resume(); err != nil {
		s.log.Error("Resume failed", "error", err)
		return fmt.Errorf("resume: %w", err)
	}

	s.mu.Lock()
	if s.state.Phase == PhasePaused {
		s.state.setPhase(PhasePlaying)
	}
	s.unlockAndPublish()
	return nil
}

// Play restarts the loaded track. It continues a paused track and replays
// one that finished without being disposed.
func (s *Session) Play() error {
	s.mu.Lock()
	phase, busy, loaded := s.state.Phase, s.starting, s.loaded
	s.mu.Unlock()
	if phase == PhaseRecording || busy {
		return fmt.Errorf("play while %s: %w", phase, ErrBusy)
	}
	if !loaded {
		return ErrNotPlaying
	}

	if err := s.player.Play(); err != nil {
		s.log.Error("Play failed", "error", err)
		return fmt.Errorf("play: %w", err)
	}

	s.mu.Lock()
	if s.loaded && s.state.Phase != PhaseRecording {
		s.state.setPhase(PhasePlaying)
	}
	s.unlockAndPublish()
	return nil
}

// StopPlaying disposes the player and ends playback
func (s *Session) StopPlaying(ctx context.Context) error {
	s.log.Debug("StopPlaying called")

	s.mu.Lock()
	s.playSeq++
	s.stopTrackersLocked()
	s.loaded = false
	if s.state.Phase == PhasePlaying || s.state.Phase == PhasePaused {
		s.state.setPhase(PhaseIdle)
	}
	s.unlockAndPublish()

	if err := s.player.Dispose(ctx); err != nil {
		s.log.Error("Dispose failed", "error", err)
		return fmt.Errorf("stop playing: %w", err)
	}
	s.alert(MsgPlayerDisposed)
	return nil
}

// Mute sets the player volume to zero
func (s *Session) Mute() {
	s.player.SetVolume(0)
}

// Unmute restores full player volume
func (s *Session) Unmute() {
	s.player.SetVolume(1)
}

// SetSliderVolume maps a 0-100 slider value onto the player volume
func (s *Session) SetSliderVolume(v float64) {
	v = max(0, min(v, 100))
	s.player.SetVolume(v / 100)
}

// SeekTo moves the loaded track to seconds
func (s *Session) SeekTo(seconds float64) error {
	if err := s.player.SeekTo(seconds); err != nil {
		return fmt.Errorf("seek to %.1fs: %w", seconds, err)
	}
	return nil
}

// SetSpeed changes the playback rate; 1 is normal speed
func (s *Session) SetSpeed(rate float64) error {
	if err := s.player.ChangeSpeed(rate); err != nil {
		return fmt.Errorf("change speed: %w", err)
	}
	return nil
}
