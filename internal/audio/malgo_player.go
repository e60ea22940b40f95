package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoPlayer decodes a whole source into memory and plays it through a
// miniaudio playback device. Speed changes resample by frame stepping.
type MalgoPlayer struct {
	backend  *MalgoBackend
	client   *http.Client
	maxBytes int64

	mu       sync.Mutex
	device   *malgo.Device
	track    *PCM
	pos      float64
	speed    float64
	volume   float64
	playing  bool
	finished bool
	opts     PlayerOptions
}

func newMalgoPlayer(backend *MalgoBackend, client *http.Client, maxBytes int64) *MalgoPlayer {
	if client == nil {
		client = http.DefaultClient
	}
	return &MalgoPlayer{backend: backend, client: client, maxBytes: maxBytes, speed: 1, volume: 1}
}

// PlayFromFile decodes a local file and starts playback
func (p *MalgoPlayer) PlayFromFile(ctx context.Context, opts PlayerOptions) error {
	data, err := os.ReadFile(opts.Source)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}
	track, err := Decode(data, opts.Source)
	if err != nil {
		return err
	}
	return p.start(ctx, track, opts)
}

// PlayFromURL downloads and decodes a remote file and starts playback
func (p *MalgoPlayer) PlayFromURL(ctx context.Context, opts PlayerOptions) error {
	data, err := fetch(ctx, p.client, opts.Source, p.maxBytes)
	if err != nil {
		return err
	}
	track, err := Decode(data, opts.Source)
	if err != nil {
		return err
	}
	return p.start(ctx, track, opts)
}

// fetch downloads url, failing once the body grows past maxBytes
func fetch(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid audio url: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch audio: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("audio source exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func (p *MalgoPlayer) start(ctx context.Context, track *PCM, opts PlayerOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// a new source replaces whatever is loaded
	p.release()

	actx, err := p.backend.context()
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(track.Channels)
	deviceConfig.SampleRate = uint32(track.SampleRate)

	var device *malgo.Device
	callbacks := malgo.DeviceCallbacks{
		Data: p.dataCallback,
		Stop: func() { p.deviceStopped(device) },
	}
	device, err = malgo.InitDevice(actx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to init playback device: %w", err)
	}

	p.mu.Lock()
	p.device = device
	p.track = track
	p.pos = 0
	p.playing = true
	p.finished = false
	p.opts = opts
	p.mu.Unlock()

	if err := device.Start(); err != nil {
		p.release()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	slog.Debug("Playback started", "source", opts.Source, "duration", track.Duration(), "loop", opts.Loop)
	return nil
}

func (p *MalgoPlayer) dataCallback(out, _ []byte, _ uint32) {
	p.mu.Lock()
	if !p.playing || p.track == nil {
		p.mu.Unlock()
		clear(out)
		return
	}

	pos, ended := render(out, p.track, p.pos, p.speed, p.volume)
	p.pos = pos

	var onComplete func()
	if ended {
		if p.opts.Loop {
			p.pos = 0
		} else {
			p.playing = false
			p.finished = true
			onComplete = p.opts.OnComplete
		}
	}
	p.mu.Unlock()

	if onComplete != nil {
		// never call back into the owner from the device thread
		go onComplete()
	}
}

// deviceStopped reports a stop the player did not ask for
func (p *MalgoPlayer) deviceStopped(device *malgo.Device) {
	p.mu.Lock()
	current := device != nil && p.device == device
	onError := p.opts.OnError
	if current {
		p.playing = false
	}
	p.mu.Unlock()

	if current && onError != nil {
		go onError(fmt.Errorf("playback device stopped unexpectedly"))
	}
}

// release stops and frees the device outside the lock; the device thread
// takes the same lock in its callback
func (p *MalgoPlayer) release() {
	p.mu.Lock()
	device := p.device
	p.device = nil
	p.track = nil
	p.playing = false
	p.pos = 0
	p.mu.Unlock()

	if device != nil {
		device.Stop()
		device.Uninit()
	}
}

// Pause silences output and keeps the position
func (p *MalgoPlayer) Pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return ErrNoTrack
	}
	p.playing = false
	return nil
}

// Resume continues from the paused position
func (p *MalgoPlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return ErrNoTrack
	}
	if !p.finished {
		p.playing = true
	}
	return nil
}

// Play continues playback, rewinding first if the track has finished
func (p *MalgoPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return ErrNoTrack
	}
	if p.finished {
		p.pos = 0
		p.finished = false
	}
	p.playing = true
	return nil
}

// Dispose stops playback and releases the device
func (p *MalgoPlayer) Dispose(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.release()
	slog.Debug("Player disposed")
	return nil
}

// SeekTo moves the playback position, clamped to the track
func (p *MalgoPlayer) SeekTo(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return ErrNoTrack
	}
	frame := seconds * float64(p.track.SampleRate)
	frame = max(0, min(frame, float64(p.track.Frames())))
	p.pos = frame
	p.finished = false
	return nil
}

// ChangeSpeed sets the playback rate; 1 is normal speed
func (p *MalgoPlayer) ChangeSpeed(rate float64) error {
	if rate <= 0 || rate > 4 {
		return fmt.Errorf("playback speed must be in (0, 4], got %.2f", rate)
	}
	p.mu.Lock()
	p.speed = rate
	p.mu.Unlock()
	return nil
}

func (p *MalgoPlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume sets the output gain, clamped to [0, 1]
func (p *MalgoPlayer) SetVolume(v float64) {
	p.mu.Lock()
	p.volume = max(0, min(v, 1))
	p.mu.Unlock()
}

// CurrentTime returns the playback position in seconds
func (p *MalgoPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil || p.track.SampleRate == 0 {
		return 0
	}
	return p.pos / float64(p.track.SampleRate)
}

func (p *MalgoPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Duration returns the loaded track length in seconds
func (p *MalgoPlayer) Duration(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return 0, ErrNoTrack
	}
	return p.track.Duration(), nil
}
