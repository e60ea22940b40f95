package audio

import "context"

// PlayerOptions configures a single playback. Source is a local path for
// PlayFromFile and an http(s) URL for PlayFromURL.
type PlayerOptions struct {
	Source     string
	Loop       bool
	OnComplete func()
	OnError    func(error)
	OnInfo     func(InfoEvent)
}

// Player plays one source at a time
type Player interface {
	PlayFromFile(ctx context.Context, opts PlayerOptions) error
	PlayFromURL(ctx context.Context, opts PlayerOptions) error
	Pause(ctx context.Context) error
	Resume() error
	// Play restarts a paused or finished track
	Play() error
	Dispose(ctx context.Context) error

	SeekTo(seconds float64) error
	ChangeSpeed(rate float64) error

	Volume() float64
	SetVolume(v float64)
	CurrentTime() float64
	IsPlaying() bool
	Duration(ctx context.Context) (float64, error)
}
