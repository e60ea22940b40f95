package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "IDLE"},
		{PhaseRecording, "RECORDING"},
		{PhasePlaying, "PLAYING"},
		{PhasePaused, "PAUSED"},
		{Phase(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestState_JSON(t *testing.T) {
	st := State{Phase: PhasePaused, MeterLevel: "0", TrackDuration: floatPtr(2.5)}
	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"phase":"PAUSED"`) || !strings.Contains(s, `"track_duration":2.5`) {
		t.Errorf("Unexpected JSON: %s", s)
	}
	if strings.Contains(s, "remaining_duration") {
		t.Errorf("Null durations should be omitted: %s", s)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	h := newHarness(t)
	if err := h.s.PlayLocalFile(context.Background()); err != nil {
		t.Fatalf("PlayLocalFile failed: %v", err)
	}
	st := h.s.Snapshot()
	*st.TrackDuration = 99
	if got := *h.s.Snapshot().TrackDuration; got != 8.5 {
		t.Errorf("Snapshot shares memory with session state: %v", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	h := newHarness(t)
	st := h.s.Snapshot()
	if st.Phase != PhaseIdle || st.MeterLevel != "0" || st.CurrentVolume != 1 {
		t.Errorf("Unexpected initial state %+v", st)
	}
	if h.s.ID() == "" {
		t.Error("Expected a session id")
	}
	if len(h.s.Tracks()) != 2 {
		t.Errorf("Expected catalog of 2, got %d", len(h.s.Tracks()))
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)

	got := make(chan State, 16)
	cancel := h.s.Subscribe(func(st State) { got <- st })

	if err := h.s.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	select {
	case st := <-got:
		if !st.IsRecording {
			t.Errorf("Expected recording state, got %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener not called")
	}

	cancel()
	cancel()
	h.s.StopRecording(context.Background())
	select {
	case st := <-got:
		t.Errorf("Cancelled listener received %+v", st)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_ListenerMayCallSession(t *testing.T) {
	h := newHarness(t)

	phases := make(chan Phase, 16)
	cancel := h.s.Subscribe(func(State) { phases <- h.s.Snapshot().Phase })
	defer cancel()

	if err := h.s.PlayRemoteFile(context.Background()); err != nil {
		t.Fatalf("PlayRemoteFile failed: %v", err)
	}
	select {
	case <-phases:
	case <-time.After(2 * time.Second):
		t.Fatal("listener calling Snapshot deadlocked")
	}
}

func TestStartPoller_Supersedes(t *testing.T) {
	h := newHarness(t)

	calls := make(chan string, 4)
	h.s.mu.Lock()
	h.s.startPollerLocked(metricVolume, time.Minute, func() func(*State) {
		calls <- "first"
		return nil
	})
	first := h.s.pollers[metricVolume]
	h.s.startPollerLocked(metricVolume, time.Minute, func() func(*State) {
		calls <- "second"
		return nil
	})
	h.s.mu.Unlock()

	if !first.ticker.(*fakeTicker).isStopped() {
		t.Error("Superseded ticker was not stopped")
	}
	if h.clock.running() != 1 {
		t.Errorf("Expected one running ticker, got %d", h.clock.running())
	}

	h.clock.fire(time.Minute)
	select {
	case who := <-calls:
		if who != "second" {
			t.Errorf("Tick went to the %s poller", who)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller not ticked")
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	if err := h.s.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	if err := h.s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.s.Close(context.Background()); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	if h.recorder.stopCalls() != 1 {
		t.Errorf("Expected active recording to be stopped, got %d", h.recorder.stopCalls())
	}
	if !h.recorder.closed {
		t.Error("Expected recorder to be closed")
	}
	if len(h.s.ActivePollers()) != 0 || h.clock.running() != 0 {
		t.Error("Pollers must be released on Close")
	}
	if st := h.s.Snapshot(); st.IsRecording || st.Phase != PhaseIdle {
		t.Errorf("Expected idle after Close, got %+v", st)
	}

	if err := h.s.StartRecording(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := h.s.PlayLocalFile(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestClose_DisposesLoadedPlayer(t *testing.T) {
	h := newHarness(t)
	if err := h.s.PlayLocalFile(context.Background()); err != nil {
		t.Fatalf("PlayLocalFile failed: %v", err)
	}
	if err := h.s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if h.player.disposeCalls() != 1 {
		t.Errorf("Expected player disposed, got %d", h.player.disposeCalls())
	}
}
