package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/audiodemo/internal/audio"
	"github.com/audiolibrelab/audiodemo/internal/config"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

type fakeTicker struct {
	interval time.Duration
	ch       chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: fixedNow}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{interval: d, ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// fire ticks every running ticker with interval d
func (c *fakeClock) fire(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tickers {
		if t.interval != d || t.isStopped() {
			continue
		}
		select {
		case t.ch <- c.now:
		default:
		}
	}
}

func (c *fakeClock) running() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

type fakeRecorder struct {
	mu        sync.Mutex
	canRecord bool
	startErr  error
	stopErr   error
	meters    float64
	started   []audio.RecorderOptions
	stops     int
	closed    bool

	// when set, Start signals entered and then waits for release
	entered chan struct{}
	release chan struct{}
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{canRecord: true, meters: audio.SilenceDB}
}

func (r *fakeRecorder) CanRecord() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canRecord
}

func (r *fakeRecorder) Start(ctx context.Context, opts audio.RecorderOptions) error {
	r.mu.Lock()
	entered, release := r.entered, r.release
	r.mu.Unlock()
	if entered != nil {
		close(entered)
		<-release
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, opts)
	return r.startErr
}

func (r *fakeRecorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return r.stopErr
}

func (r *fakeRecorder) Meters() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meters
}

func (r *fakeRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeRecorder) startCalls() []audio.RecorderOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audio.RecorderOptions(nil), r.started...)
}

func (r *fakeRecorder) stopCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

type fakePlayer struct {
	mu         sync.Mutex
	playErr    error
	pauseErr   error
	duration   float64
	current    float64
	volume     float64
	playing    bool
	fromFile   []audio.PlayerOptions
	fromURL    []audio.PlayerOptions
	disposes   int
	seeks      []float64
	speeds     []float64
	plays      int
	resumes    int
	notPlaying bool // report not playing right after start
	last       *audio.PlayerOptions

	entered chan struct{}
	release chan struct{}

	pauseEntered chan struct{}
	pauseRelease chan struct{}
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{volume: 1, duration: 8.5}
}

func (p *fakePlayer) start(opts audio.PlayerOptions, url bool) error {
	p.mu.Lock()
	entered, release := p.entered, p.release
	p.mu.Unlock()
	if entered != nil {
		close(entered)
		<-release
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &opts
	if url {
		p.fromURL = append(p.fromURL, opts)
	} else {
		p.fromFile = append(p.fromFile, opts)
	}
	if p.playErr != nil {
		return p.playErr
	}
	p.playing = !p.notPlaying
	return nil
}

func (p *fakePlayer) PlayFromFile(ctx context.Context, opts audio.PlayerOptions) error {
	return p.start(opts, false)
}

func (p *fakePlayer) PlayFromURL(ctx context.Context, opts audio.PlayerOptions) error {
	return p.start(opts, true)
}

func (p *fakePlayer) Pause(ctx context.Context) error {
	p.mu.Lock()
	entered, release := p.pauseEntered, p.pauseRelease
	p.mu.Unlock()
	if entered != nil {
		close(entered)
		<-release
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pauseErr != nil {
		return p.pauseErr
	}
	p.playing = false
	return nil
}

func (p *fakePlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumes++
	p.playing = true
	return nil
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	p.playing = true
	return nil
}

func (p *fakePlayer) Dispose(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disposes++
	p.playing = false
	return nil
}

func (p *fakePlayer) SeekTo(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, seconds)
	return nil
}

func (p *fakePlayer) ChangeSpeed(rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speeds = append(p.speeds, rate)
	return nil
}

func (p *fakePlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *fakePlayer) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

func (p *fakePlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) Duration(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration, nil
}

func (p *fakePlayer) disposeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disposes
}

func (p *fakePlayer) lastOptions(t *testing.T) audio.PlayerOptions {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		t.Fatal("player was never started")
	}
	return *p.last
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Alert(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

func (n *fakeNotifier) has(msg string) bool {
	for _, m := range n.messages() {
		if m == msg {
			return true
		}
	}
	return false
}

type harness struct {
	s        *Session
	cfg      *config.Config
	player   *fakePlayer
	recorder *fakeRecorder
	notifier *fakeNotifier
	clock    *fakeClock
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Recording: config.RecordingConfig{Directory: filepath.Join(dir, "audio")},
		Playback: config.PlaybackConfig{
			LocalFile: filepath.Join(dir, "audio", "angel.mp3"),
			RemoteURL: "http://www.noiseaddicts.com/samples_1w72b820/2514.mp3",
		},
		Polling: config.PollingConfig{
			Meter:    300 * time.Millisecond,
			Duration: time.Second,
			Volume:   2 * time.Second,
		},
		Tracks: []config.Track{
			{Name: "Fight Club", URL: "http://www.noiseaddicts.com/samples_1w72b820/2514.mp3"},
			{Name: "To The Bat Cave!!!", URL: "http://www.noiseaddicts.com/samples_1w72b820/17.mp3"},
		},
	}
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}
	h := &harness{
		cfg:      cfg,
		player:   newFakePlayer(),
		recorder: newFakeRecorder(),
		notifier: &fakeNotifier{},
		clock:    newFakeClock(),
	}
	m4a := audio.ContainerM4A
	h.s = New(cfg, h.player, h.recorder, Options{
		Notifier:  h.notifier,
		Clock:     h.clock,
		Container: &m4a,
	})
	t.Cleanup(func() { h.s.Close(context.Background()) })
	return h
}

// waitFor polls cond until it holds or the test times out
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
