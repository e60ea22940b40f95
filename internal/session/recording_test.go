package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/audiolibrelab/audiodemo/internal/audio"
)

func TestStartRecording_Success(t *testing.T) {
	h := newHarness(t)

	if err := h.s.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	st := h.s.Snapshot()
	if !st.IsRecording || st.Phase != PhaseRecording {
		t.Errorf("Expected recording phase, got %+v", st)
	}
	if st.IsPlaying {
		t.Error("IsPlaying and IsRecording must not both be true")
	}
	if got := h.s.ActivePollers(); len(got) != 1 || got[0] != "meter" {
		t.Errorf("Expected exactly the meter poller, got %v", got)
	}
	if h.clock.running() != 1 {
		t.Errorf("Expected one running ticker, got %d", h.clock.running())
	}

	calls := h.recorder.startCalls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 Start call, got %d", len(calls))
	}
	opts := calls[0]
	want := filepath.Join(h.cfg.AudioDir(), "recording_20240102_030405.m4a")
	if opts.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", opts.OutputPath, want)
	}
	if !opts.Metering {
		t.Error("Expected metering to be enabled")
	}
	if opts.Format != 2 || opts.Encoder != 3 {
		t.Errorf("Expected MPEG_4/AAC codes 2/3, got %d/%d", opts.Format, opts.Encoder)
	}
	if st.LastRecording != want {
		t.Errorf("LastRecording = %q, want %q", st.LastRecording, want)
	}
	if _, err := os.Stat(h.cfg.AudioDir()); err != nil {
		t.Errorf("Expected audio folder to be created: %v", err)
	}
}

func TestStartRecording_DeviceCannotRecord(t *testing.T) {
	h := newHarness(t)
	h.recorder.canRecord = false

	err := h.s.StartRecording(context.Background())
	if !errors.Is(err, ErrCannotRecord) {
		t.Fatalf("Expected ErrCannotRecord, got %v", err)
	}
	if !h.notifier.has(MsgCannotRecord) {
		t.Errorf("Expected alert %q, got %v", MsgCannotRecord, h.notifier.messages())
	}

	st := h.s.Snapshot()
	if st.IsRecording || st.Phase != PhaseIdle {
		t.Errorf("Expected idle session, got %+v", st)
	}
	if st.LastRecording != "" {
		t.Errorf("No file path should be computed, got %q", st.LastRecording)
	}
	if len(h.recorder.startCalls()) != 0 {
		t.Error("Recorder.Start must not be called")
	}
	if len(h.s.ActivePollers()) != 0 {
		t.Errorf("Expected no pollers, got %v", h.s.ActivePollers())
	}
}

func TestStartRecording_StartRejected(t *testing.T) {
	h := newHarness(t)
	h.recorder.startErr = errors.New("microphone permission denied")

	err := h.s.StartRecording(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}

	st := h.s.Snapshot()
	if st.IsRecording || st.Phase != PhaseIdle {
		t.Errorf("Expected rollback to idle, got %+v", st)
	}
	if st.MeterLevel != "0" {
		t.Errorf("MeterLevel = %q, want 0", st.MeterLevel)
	}
	if len(h.s.ActivePollers()) != 0 || h.clock.running() != 0 {
		t.Error("No poller may be active after a failed start")
	}
	if !h.notifier.has("microphone permission denied") {
		t.Errorf("Expected the error to be alerted, got %v", h.notifier.messages())
	}
	if h.s.LastError() == "" {
		t.Error("Expected LastError to be set")
	}

	// session is usable again
	h.recorder.startErr = nil
	if err := h.s.StartRecording(context.Background()); err != nil {
		t.Errorf("Retry failed: %v", err)
	}
}

func TestStopRecording(t *testing.T) {
	tests := []struct {
		name    string
		stopErr error
	}{
		{"clean stop", nil},
		{"stop fails", errors.New("encoder crashed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if err := h.s.StartRecording(context.Background()); err != nil {
				t.Fatalf("StartRecording failed: %v", err)
			}
			h.recorder.meters = -20
			h.clock.fire(300 * time.Millisecond)
			waitFor(t, "meter update", func() bool { return h.s.Snapshot().MeterLevel == "-20.0" })

			h.recorder.mu.Lock()
			h.recorder.stopErr = tt.stopErr
			h.recorder.mu.Unlock()

			err := h.s.StopRecording(context.Background())
			if (err != nil) != (tt.stopErr != nil) {
				t.Errorf("StopRecording error = %v, want error %v", err, tt.stopErr != nil)
			}

			st := h.s.Snapshot()
			if st.IsRecording || st.Phase != PhaseIdle {
				t.Errorf("Expected idle after stop, got %+v", st)
			}
			if st.MeterLevel != "0" {
				t.Errorf("MeterLevel = %q, want 0", st.MeterLevel)
			}
			if len(h.s.ActivePollers()) != 0 {
				t.Errorf("Expected no pollers, got %v", h.s.ActivePollers())
			}
			msgs := h.notifier.messages()
			if len(msgs) == 0 || msgs[len(msgs)-1] != MsgRecorderStop {
				t.Errorf("Expected final alert %q, got %v", MsgRecorderStop, msgs)
			}
		})
	}
}

func TestMeterPolling(t *testing.T) {
	h := newHarness(t)
	if err := h.s.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	h.recorder.mu.Lock()
	h.recorder.meters = -12.34
	h.recorder.mu.Unlock()

	// other intervals do not drive the meter
	h.clock.fire(time.Second)
	if got := h.s.Snapshot().MeterLevel; got != "0" {
		t.Errorf("MeterLevel changed on unrelated tick: %q", got)
	}

	h.clock.fire(300 * time.Millisecond)
	waitFor(t, "meter level", func() bool { return h.s.Snapshot().MeterLevel == "-12.3" })
}

func TestRecordingPath(t *testing.T) {
	pattern := regexp.MustCompile(`recording_\d{8}_\d{6}\.(m4a|caf)$`)

	tests := []struct {
		goos string
		want string
	}{
		{"android", "recording_20240102_030405.m4a"},
		{"linux", "recording_20240102_030405.m4a"},
		{"darwin", "recording_20240102_030405.caf"},
		{"ios", "recording_20240102_030405.caf"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			cfg := testConfig(t)
			container := audio.PlatformContainer(tt.goos)
			s := New(cfg, newFakePlayer(), newFakeRecorder(), Options{
				Clock:     newFakeClock(),
				Notifier:  &fakeNotifier{},
				Container: &container,
			})
			defer s.Close(context.Background())

			path := s.RecordingPath()
			if path != filepath.Join(cfg.AudioDir(), tt.want) {
				t.Errorf("RecordingPath() = %q, want %q", path, tt.want)
			}
			if !pattern.MatchString(path) {
				t.Errorf("%q does not match %s", path, pattern)
			}
			// same clock reading, same path
			if again := s.RecordingPath(); again != path {
				t.Errorf("Path not deterministic: %q vs %q", path, again)
			}
		})
	}
}

func TestStartRecording_StopWhileStarting(t *testing.T) {
	h := newHarness(t)
	h.recorder.entered = make(chan struct{})
	h.recorder.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.s.StartRecording(context.Background()) }()
	<-h.recorder.entered

	// a second start is rejected while the first is pending
	if err := h.s.StartRecording(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for concurrent start, got %v", err)
	}

	h.recorder.mu.Lock()
	h.recorder.stopErr = audio.ErrNotRecording
	h.recorder.mu.Unlock()
	h.s.StopRecording(context.Background())

	close(h.recorder.release)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("Expected ErrStale, got %v", err)
	}

	st := h.s.Snapshot()
	if st.IsRecording || st.Phase != PhaseIdle {
		t.Errorf("Superseded start must not mark recording, got %+v", st)
	}
	if len(h.s.ActivePollers()) != 0 {
		t.Errorf("Expected no pollers, got %v", h.s.ActivePollers())
	}
	if h.recorder.stopCalls() != 2 {
		t.Errorf("Expected the late recording to be stopped, got %d Stop calls", h.recorder.stopCalls())
	}
}

func TestStartRecording_WhilePlaying(t *testing.T) {
	h := newHarness(t)
	if err := h.s.PlayLocalFile(context.Background()); err != nil {
		t.Fatalf("PlayLocalFile failed: %v", err)
	}

	err := h.s.StartRecording(context.Background())
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Expected ErrBusy, got %v", err)
	}
	if len(h.recorder.startCalls()) != 0 {
		t.Error("Recorder must not be started while playing")
	}
	if st := h.s.Snapshot(); st.IsRecording {
		t.Error("IsRecording must stay false")
	}
}

func TestLastRecording(t *testing.T) {
	h := newHarness(t)

	if path, ok := h.s.LastRecording(); path != "" || ok {
		t.Errorf("Expected no recording yet, got %q %v", path, ok)
	}

	if err := h.s.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	h.s.StopRecording(context.Background())

	path, ok := h.s.LastRecording()
	if ok {
		t.Error("Fake recorder writes nothing, file should not exist")
	}
	if h.s.Snapshot().RecordedFile != path {
		t.Errorf("RecordedFile = %q, want %q", h.s.Snapshot().RecordedFile, path)
	}

	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.s.LastRecording(); !ok {
		t.Error("Expected recording to exist")
	}

	if err := h.s.PlayRecordedFile(context.Background()); err != nil {
		t.Fatalf("PlayRecordedFile failed: %v", err)
	}
	if got := h.player.lastOptions(t).Source; got != path {
		t.Errorf("Played %q, want %q", got, path)
	}
	if len(h.s.ActivePollers()) != 0 {
		t.Errorf("Recorded file playback starts no trackers, got %v", h.s.ActivePollers())
	}
}
