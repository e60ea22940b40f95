// Package session implements the recording/playback view-model: observable
// state and commands bound to one audio player and one recorder.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/audiodemo/internal/audio"
	"github.com/audiolibrelab/audiodemo/internal/config"
)

var (
	ErrCannotRecord = errors.New("device cannot record audio")
	ErrBusy         = errors.New("session is busy")
	ErrNotPlaying   = errors.New("nothing is playing")
	ErrNotPaused    = errors.New("playback is not paused")
	ErrStale        = errors.New("request was superseded")
	ErrClosed       = errors.New("session is closed")
)

// User-facing alert messages
const (
	MsgCannotRecord   = "This device cannot record audio."
	MsgRecorderStop   = "Recorder stopped."
	MsgAudioComplete  = "Audio file complete."
	MsgPlayerDisposed = "Media Player Disposed."
	msgInfoPrefix     = "Info callback: "
)

const meterReset = "0"

// Notifier shows a message to the user
type Notifier interface {
	Alert(msg string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(msg string)

func (f NotifierFunc) Alert(msg string) { f(msg) }

type logNotifier struct{ log *slog.Logger }

func (n logNotifier) Alert(msg string) { n.log.Info("Alert", "message", msg) }

// Options carries the optional collaborators of a session
type Options struct {
	Notifier Notifier
	Clock    Clock
	Logger   *slog.Logger
	// Container overrides the recording container chosen from config
	Container *audio.Container
}

// Session is the view-model of one screen. Commands may be called from any
// goroutine; player and recorder calls are made without holding the lock.
type Session struct {
	id       string
	log      *slog.Logger
	player   audio.Player
	recorder audio.Recorder
	notifier Notifier
	clock    Clock

	audioDir  string
	localFile string
	remoteURL string
	loop      bool
	container audio.Container
	polling   config.PollingConfig
	tracks    []Track

	mu    sync.Mutex
	state State
	// bumped by every start and stop request; completions carrying an
	// older value are ignored
	recordSeq uint64
	playSeq   uint64
	starting  bool // a start call has not returned yet
	loaded    bool // the player holds an undisposed source
	closed    bool
	pollers   map[metric]*poller

	// committed states waiting for the dispatcher, guarded by mu
	queue       []State
	dispatching bool

	listenersMu sync.Mutex
	listeners   map[int]func(State)
	nextID      int

	lastError   string
	lastErrorMu sync.RWMutex
}

// New creates a session around player and recorder. The session owns both
// and releases them in Close.
func New(cfg *config.Config, player audio.Player, recorder audio.Recorder, opts Options) *Session {
	id := uuid.NewString()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)

	s := &Session{
		id:        id,
		log:       logger,
		player:    player,
		recorder:  recorder,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		audioDir:  cfg.AudioDir(),
		localFile: cfg.LocalFile(),
		remoteURL: cfg.Playback.RemoteURL,
		loop:      cfg.Playback.Loop,
		polling:   cfg.Polling,
		tracks:    append([]Track(nil), cfg.Tracks...),
		state:     State{MeterLevel: meterReset, CurrentVolume: 1},
		pollers:   make(map[metric]*poller),
		listeners: make(map[int]func(State)),
	}
	if s.notifier == nil {
		s.notifier = logNotifier{log: logger}
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if opts.Container != nil {
		s.container = *opts.Container
	} else {
		s.container = audio.ResolveContainer(cfg.Recording.Format)
	}
	if s.polling.Meter <= 0 {
		s.polling.Meter = 300 * time.Millisecond
	}
	if s.polling.Duration <= 0 {
		s.polling.Duration = time.Second
	}
	if s.polling.Volume <= 0 {
		s.polling.Volume = 2 * time.Second
	}

	logger.Debug("Session created", "audio_dir", s.audioDir, "container", s.container.Extension)
	return s
}

// ID returns the unique session identifier
func (s *Session) ID() string {
	return s.id
}

// Tracks returns the remote demo catalog
func (s *Session) Tracks() []Track {
	return append([]Track(nil), s.tracks...)
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to receive every committed state. Listeners run on
// a dispatcher goroutine, one state at a time in commit order, and may call
// back into the session.
func (s *Session) Subscribe(fn func(State)) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// unlockAndPublish queues the committed state for listeners and releases s.mu
func (s *Session) unlockAndPublish() {
	s.queue = append(s.queue, s.state.clone())
	start := !s.dispatching
	s.dispatching = true
	s.mu.Unlock()

	if start {
		go s.dispatch()
	}
}

func (s *Session) dispatch() {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		if len(batch) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.listenersMu.Lock()
		fns := make([]func(State), 0, len(s.listeners))
		for _, fn := range s.listeners {
			fns = append(fns, fn)
		}
		s.listenersMu.Unlock()

		for _, st := range batch {
			for _, fn := range fns {
				fn(st)
			}
		}
	}
}

func (s *Session) alert(msg string) {
	s.notifier.Alert(msg)
}

// LastError returns the message of the most recent failed operation
func (s *Session) LastError() string {
	s.lastErrorMu.RLock()
	defer s.lastErrorMu.RUnlock()
	return s.lastError
}

func (s *Session) setLastError(err string) {
	s.lastErrorMu.Lock()
	defer s.lastErrorMu.Unlock()
	s.lastError = err
}

func (s *Session) clearLastError() {
	s.setLastError("")
}

// Close stops pollers, finalizes an active recording and disposes the
// player. Later commands return ErrClosed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.recordSeq++
	s.playSeq++
	for m := range s.pollers {
		s.stopPollerLocked(m)
	}
	recording := s.state.IsRecording
	loaded := s.loaded
	s.loaded = false
	s.state.setPhase(PhaseIdle)
	s.unlockAndPublish()

	s.log.Debug("Session closing", "recording", recording, "loaded", loaded)

	var errs []error
	if recording {
		if err := s.recorder.Stop(ctx); err != nil && !errors.Is(err, audio.ErrNotRecording) {
			errs = append(errs, fmt.Errorf("stop recorder: %w", err))
		}
	}
	if err := s.recorder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close recorder: %w", err))
	}
	if loaded {
		if err := s.player.Dispose(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dispose player: %w", err))
		}
	}
	return errors.Join(errs...)
}
