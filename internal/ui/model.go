// Package ui is the terminal screen of the demo. Keys play the role of the
// buttons and the left/right arrows move the volume slider.
package ui

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/audiolibrelab/audiodemo/internal/session"
)

// Controller is the part of a session the screen drives
type Controller interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	PlayLocalFile(ctx context.Context) error
	PlayRemoteFile(ctx context.Context) error
	PlayTrack(ctx context.Context, index int) error
	PlayRecordedFile(ctx context.Context) error
	LastRecording() (string, bool)
	Pause(ctx context.Context) error
	Resume() error
	Play() error
	StopPlaying(ctx context.Context) error
	Mute()
	Unmute()
	SeekTo(seconds float64) error
	SetSpeed(rate float64) error
	SetSliderVolume(v float64)
	Snapshot() session.State
	Tracks() []session.Track
}

// StateMsg carries a committed session state
type StateMsg session.State

// AlertMsg is a message for the user
type AlertMsg struct{ Text string }

type resultMsg struct {
	action string
	err    error
}

type recordingMsg struct {
	path   string
	exists bool
}

const (
	sliderMax  = 100
	sliderStep = 5
	skipTarget = 8
)

type model struct {
	ctx    context.Context
	ctrl   Controller
	tracks []session.Track

	state    session.State
	slider   float64
	cursor   int
	speed    float64
	alert    string
	lastErr  string
	recorded string
	exists   bool
	width    int
}

func newModel(ctx context.Context, ctrl Controller) model {
	return model{
		ctx:    ctx,
		ctrl:   ctrl,
		tracks: ctrl.Tracks(),
		state:  ctrl.Snapshot(),
		slider: sliderMax,
		speed:  1,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

// run wraps a blocking session command so it executes off the event loop
func (m model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{action: action, err: fn(ctx)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case StateMsg:
		m.state = session.State(msg)

	case AlertMsg:
		m.alert = msg.Text

	case resultMsg:
		if msg.err != nil {
			slog.Debug("UI action failed", "action", msg.action, "error", msg.err)
			m.lastErr = fmt.Sprintf("%s: %v", msg.action, msg.err)
		} else {
			m.lastErr = ""
		}

	case recordingMsg:
		m.recorded = msg.path
		m.exists = msg.exists

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.ctrl
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "esc":
		m.alert = ""
		m.lastErr = ""

	case "r":
		return m, m.run("record", c.StartRecording)
	case "s":
		return m, m.run("stop recording", c.StopRecording)
	case "g":
		return m, func() tea.Msg {
			path, ok := c.LastRecording()
			return recordingMsg{path: path, exists: ok}
		}
	case "f":
		return m, m.run("play recording", c.PlayRecordedFile)

	case "l":
		return m, m.run("play local", c.PlayLocalFile)
	case "u":
		return m, m.run("play remote", c.PlayRemoteFile)
	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down":
		if m.cursor < len(m.tracks)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.tracks) == 0 {
			return m, nil
		}
		index := m.cursor
		return m, m.run("play track", func(ctx context.Context) error {
			return c.PlayTrack(ctx, index)
		})

	case "p":
		return m, m.run("pause", c.Pause)
	case "c":
		return m, m.run("resume", func(context.Context) error { return c.Resume() })
	case " ":
		return m, m.run("play", func(context.Context) error { return c.Play() })
	case "x":
		return m, m.run("stop", c.StopPlaying)

	case "m":
		c.Mute()
	case "n":
		c.Unmute()
	case "left":
		m.slider = max(0, m.slider-sliderStep)
		c.SetSliderVolume(m.slider)
	case "right":
		m.slider = min(sliderMax, m.slider+sliderStep)
		c.SetSliderVolume(m.slider)

	case "k":
		return m, m.run("seek", func(context.Context) error { return c.SeekTo(skipTarget) })
	case "1", "2", "3":
		rate := map[string]float64{"1": 1, "2": 1.5, "3": 2}[msg.String()]
		m.speed = rate
		return m, m.run("speed", func(context.Context) error { return c.SetSpeed(rate) })
	}
	return m, nil
}
