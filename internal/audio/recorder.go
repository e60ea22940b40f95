package audio

import (
	"context"
	"errors"
)

var (
	ErrNotRecording     = errors.New("recorder is not recording")
	ErrAlreadyRecording = errors.New("recorder is already recording")
	ErrNoTrack          = errors.New("no track loaded")
)

// InfoEvent is delivered through the OnInfo callbacks of recorder and player
type InfoEvent struct {
	Info  string `json:"info"`
	Extra string `json:"extra,omitempty"`
}

// RecorderOptions configures a single recording. Format and Encoder carry the
// raw container/encoder codes of the target platform (MPEG_4=2, AAC=3 for m4a);
// they are zero when the container needs no codes.
type RecorderOptions struct {
	OutputPath string
	Format     int
	Encoder    int
	Metering   bool
	OnInfo     func(InfoEvent)
	OnError    func(error)
}

// Recorder captures from the default input device into a file
type Recorder interface {
	// CanRecord reports whether the device has a usable input and encoder
	CanRecord() bool
	Start(ctx context.Context, opts RecorderOptions) error
	Stop(ctx context.Context) error
	// Meters returns the current input level in dBFS; only meaningful while
	// recording with metering enabled
	Meters() float64

	Close() error
}
