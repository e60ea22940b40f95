package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// MalgoRecorder captures from the default input device and streams PCM into
// a Sink on a writer goroutine so the device callback never blocks on I/O.
type MalgoRecorder struct {
	backend    *MalgoBackend
	sampleRate int
	channels   int
	ffmpeg     string

	mu        sync.Mutex
	device    *malgo.Device
	sink      Sink
	chunks    chan []byte
	writeDone chan struct{}
	opts      RecorderOptions

	// dBFS as float64 bits, written from the device callback
	level atomic.Uint64
}

func newMalgoRecorder(backend *MalgoBackend, sampleRate, channels int, ffmpeg string) *MalgoRecorder {
	r := &MalgoRecorder{
		backend:    backend,
		sampleRate: sampleRate,
		channels:   channels,
		ffmpeg:     ffmpeg,
	}
	r.level.Store(math.Float64bits(SilenceDB))
	return r
}

// CanRecord reports whether a capture device exists and, for containers that
// need it, ffmpeg is installed
func (r *MalgoRecorder) CanRecord() bool {
	if !r.backend.hasCaptureDevice() {
		return false
	}
	if strings.EqualFold(r.backend.cfg.Recording.Format, "flac") {
		return true
	}
	ffmpeg := r.ffmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpeg); err != nil {
		slog.Debug("ffmpeg not found, recording unavailable", "ffmpeg", ffmpeg)
		return false
	}
	return true
}

// Start opens the output sink and begins capturing
func (r *MalgoRecorder) Start(ctx context.Context, opts RecorderOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.device != nil {
		return ErrAlreadyRecording
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	actx, err := r.backend.context()
	if err != nil {
		return err
	}

	sink, err := newSink(r.ffmpeg, opts.OutputPath, r.sampleRate, r.channels)
	if err != nil {
		return err
	}

	chunks := make(chan []byte, 64)
	writeDone := make(chan struct{})
	go r.writeLoop(sink, chunks, writeDone, opts.OnError)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(r.channels)
	deviceConfig.SampleRate = uint32(r.sampleRate)

	metering := opts.Metering
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if metering {
				r.level.Store(math.Float64bits(LevelDB(input)))
			}
			buf := make([]byte, len(input))
			copy(buf, input)
			select {
			case chunks <- buf:
			default:
				// writer is behind; dropping keeps the device thread realtime
			}
		},
	}

	device, err := malgo.InitDevice(actx.Context, deviceConfig, callbacks)
	if err != nil {
		close(chunks)
		<-writeDone
		sink.Close()
		os.Remove(opts.OutputPath)
		return fmt.Errorf("failed to init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		close(chunks)
		<-writeDone
		sink.Close()
		os.Remove(opts.OutputPath)
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	r.device = device
	r.sink = sink
	r.chunks = chunks
	r.writeDone = writeDone
	r.opts = opts
	r.level.Store(math.Float64bits(SilenceDB))

	slog.Info("Recording started", "file", opts.OutputPath, "sample_rate", r.sampleRate, "channels", r.channels)
	if opts.OnInfo != nil {
		go opts.OnInfo(InfoEvent{Info: "recording started", Extra: opts.OutputPath})
	}
	return nil
}

func (r *MalgoRecorder) writeLoop(sink Sink, chunks <-chan []byte, done chan<- struct{}, onError func(error)) {
	defer close(done)
	failed := false
	for chunk := range chunks {
		if failed {
			continue
		}
		if _, err := sink.Write(chunk); err != nil {
			failed = true
			slog.Error("Failed to write captured audio", "error", err)
			if onError != nil {
				go onError(fmt.Errorf("writing recording: %w", err))
			}
		}
	}
}

// Stop stops capturing and finalizes the output file
func (r *MalgoRecorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	device, sink, chunks, writeDone, opts := r.device, r.sink, r.chunks, r.writeDone, r.opts
	r.device, r.sink, r.chunks, r.writeDone = nil, nil, nil, nil
	r.mu.Unlock()

	if device == nil {
		return ErrNotRecording
	}

	device.Stop()
	device.Uninit()
	close(chunks)

	select {
	case <-writeDone:
	case <-ctx.Done():
		go func() {
			<-writeDone
			sink.Close()
		}()
		return fmt.Errorf("waiting for recording writer: %w", ctx.Err())
	}

	r.level.Store(math.Float64bits(SilenceDB))
	if err := sink.Close(); err != nil {
		return fmt.Errorf("failed to finalize recording: %w", err)
	}

	slog.Info("Recording stopped", "file", opts.OutputPath)
	if opts.OnInfo != nil {
		go opts.OnInfo(InfoEvent{Info: "recording finalized", Extra: opts.OutputPath})
	}
	return nil
}

// Meters returns the most recent input level in dBFS
func (r *MalgoRecorder) Meters() float64 {
	return math.Float64frombits(r.level.Load())
}

// Close stops an active recording
func (r *MalgoRecorder) Close() error {
	r.mu.Lock()
	active := r.device != nil
	r.mu.Unlock()
	if !active {
		return nil
	}
	return r.Stop(context.Background())
}
