package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/audiolibrelab/audiodemo/internal/session"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	recStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	playStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	pauseStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	alertStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)
)

const sliderWidth = 20

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Audio Demo") + "\n\n")
	b.WriteString(m.statusLine() + "\n")

	if m.state.IsRecording {
		b.WriteString(labelStyle.Render("Meter: ") + m.state.MeterLevel + " dB\n")
	}
	if d := m.state.TrackDuration; d != nil {
		remaining := *d
		if r := m.state.RemainingDuration; r != nil {
			remaining = *r
		}
		b.WriteString(labelStyle.Render("Remaining: ") + fmt.Sprintf("%.1fs / %.1fs", remaining, *d) + "\n")
	}
	b.WriteString(labelStyle.Render("Volume: ") + renderSlider(m.slider) +
		labelStyle.Render(fmt.Sprintf("  player %.0f%%", m.state.CurrentVolume*100)) + "\n")
	b.WriteString(labelStyle.Render("Speed: ") + fmt.Sprintf("%.1fx", m.speed) + "\n")

	if m.recorded != "" {
		exists := "missing"
		if m.exists {
			exists = "exists"
		}
		b.WriteString(labelStyle.Render("Recorded: ") + m.recorded + " (" + exists + ")\n")
	}

	if len(m.tracks) > 0 {
		b.WriteString("\n" + labelStyle.Render("Tracks") + "\n")
		for i, t := range m.tracks {
			line := "  " + t.Name
			if i == m.cursor {
				line = cursorStyle.Render("> " + t.Name)
			}
			b.WriteString(line + "\n")
		}
	}

	if m.alert != "" {
		b.WriteString("\n" + alertStyle.Render(m.alert) + "\n")
	}
	if m.lastErr != "" {
		b.WriteString("\n" + errStyle.Render(m.lastErr) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(strings.Join([]string{
		"r record  s stop rec  g last file  f play last",
		"l local  u remote  enter track  p pause  c resume  space play  x stop",
		"m mute  n unmute  ←/→ volume  k skip to 8s  1/2/3 speed  q quit",
	}, "\n")) + "\n")
	return b.String()
}

func (m model) statusLine() string {
	switch m.state.Phase {
	case session.PhaseRecording:
		return recStyle.Render("● RECORDING")
	case session.PhasePlaying:
		return playStyle.Render("▶ PLAYING")
	case session.PhasePaused:
		return pauseStyle.Render("❚❚ PAUSED")
	default:
		return idleStyle.Render("○ IDLE")
	}
}

func renderSlider(v float64) string {
	filled := int(v / sliderMax * sliderWidth)
	filled = max(0, min(filled, sliderWidth))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", sliderWidth-filled) + "]" +
		fmt.Sprintf(" %3.0f", v)
}
