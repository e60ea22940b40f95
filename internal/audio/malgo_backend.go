package audio

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/audiolibrelab/audiodemo/internal/config"
)

// MalgoBackend implements Backend on top of miniaudio
type MalgoBackend struct {
	cfg    *config.Config
	client *http.Client

	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewMalgoBackend initializes a miniaudio context
func NewMalgoBackend(cfg *config.Config, client *http.Client) (*MalgoBackend, error) {
	var onLog malgo.LogProc
	if os.Getenv("AUDIODEMO_TRACE") != "" {
		onLog = func(message string) {
			slog.Debug("miniaudio", "message", message)
		}
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, onLog)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}
	return &MalgoBackend{cfg: cfg, client: client, ctx: ctx}, nil
}

// NewPlayer creates a new malgo player
func (b *MalgoBackend) NewPlayer() Player {
	return newMalgoPlayer(b, b.client, int64(b.cfg.Playback.MaxDownloadMB)<<20)
}

// NewRecorder creates a new malgo recorder
func (b *MalgoBackend) NewRecorder() Recorder {
	return newMalgoRecorder(b, b.cfg.Audio.SampleRate, b.cfg.Audio.Channels, b.cfg.Recording.FFmpeg)
}

// ListDevices returns capture devices followed by playback devices
func (b *MalgoBackend) ListDevices() ([]DeviceInfo, error) {
	ctx, err := b.context()
	if err != nil {
		return nil, err
	}

	var result []DeviceInfo
	for _, kind := range []malgo.DeviceType{malgo.Capture, malgo.Playback} {
		devices, err := ctx.Devices(kind)
		if err != nil {
			return nil, fmt.Errorf("malgo devices: %w", err)
		}
		for _, d := range devices {
			result = append(result, DeviceInfo{
				ID:        d.ID.String(),
				Name:      d.Name(),
				IsDefault: d.IsDefault != 0,
				Capture:   kind == malgo.Capture,
			})
		}
	}
	return result, nil
}

// GetType returns the backend type
func (b *MalgoBackend) GetType() BackendType {
	return BackendTypeMalgo
}

// Close releases the miniaudio context
func (b *MalgoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	return err
}

func (b *MalgoBackend) context() (*malgo.AllocatedContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil, fmt.Errorf("audio backend closed")
	}
	return b.ctx, nil
}

func (b *MalgoBackend) hasCaptureDevice() bool {
	ctx, err := b.context()
	if err != nil {
		return false
	}
	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		slog.Debug("Failed to enumerate capture devices", "error", err)
		return false
	}
	return len(devices) > 0
}
