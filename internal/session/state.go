package session

import "github.com/audiolibrelab/audiodemo/internal/config"

// Phase is the single activity a session is in. Recording and playback share
// the audio hardware, so only one of them can be active at a time.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhasePlaying
	PhasePaused
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseRecording:
		return "RECORDING"
	case PhasePlaying:
		return "PLAYING"
	case PhasePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets Phase appear by name in JSON and YAML
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// SourceKind tells PlayAudio how to open a source
type SourceKind string

const (
	LocalFile SourceKind = "localFile"
	RemoteURL SourceKind = "remoteFile"
)

// Track is a catalog entry of remote demo audio
type Track = config.Track

// State is the observable state of a session. Snapshot returns it by value;
// the duration pointers are freshly allocated for every snapshot.
type State struct {
	Phase       Phase  `json:"phase"`
	IsPlaying   bool   `json:"is_playing"`
	IsRecording bool   `json:"is_recording"`
	MeterLevel  string `json:"meter_level"`
	// RecordedFile is set by LastRecording and empty until then
	RecordedFile      string   `json:"recorded_file,omitempty"`
	LastRecording     string   `json:"last_recording,omitempty"`
	CurrentVolume     float64  `json:"current_volume"`
	TrackDuration     *float64 `json:"track_duration,omitempty"`
	RemainingDuration *float64 `json:"remaining_duration,omitempty"`
}

func (s State) clone() State {
	if s.TrackDuration != nil {
		d := *s.TrackDuration
		s.TrackDuration = &d
	}
	if s.RemainingDuration != nil {
		d := *s.RemainingDuration
		s.RemainingDuration = &d
	}
	return s
}

// setPhase moves the state to p. IsPlaying and IsRecording follow the phase
// so they can never both be true.
func (s *State) setPhase(p Phase) {
	s.Phase = p
	s.IsPlaying = p == PhasePlaying
	s.IsRecording = p == PhaseRecording
}

func floatPtr(v float64) *float64 {
	return &v
}
