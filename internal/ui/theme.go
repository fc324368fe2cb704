// Package ui renders the assistant in a line-oriented terminal: the voice
// feedback line, the email list with its pager, the help list, notifications
// and spoken-text echo.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/inbox-voice-lab/internal/inbox"
	"github.com/inbox-voice-lab/internal/voice"
)

// Palette is one color scheme.
type Palette struct {
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Subtle  lipgloss.Color
	Success lipgloss.Color
	Info    lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Border  lipgloss.Color
}

var (
	DarkPalette = Palette{
		Accent:  "#5B9BD5",
		Text:    "#F8F9FA",
		Muted:   "#868E96",
		Subtle:  "#495057",
		Success: "#6BCB77",
		Info:    "#5B9BD5",
		Warning: "#FFD93D",
		Error:   "#FF6B6B",
		Border:  "#495057",
	}
	LightPalette = Palette{
		Accent:  "#2B6CB0",
		Text:    "#1A202C",
		Muted:   "#718096",
		Subtle:  "#CBD5E0",
		Success: "#2F855A",
		Info:    "#2B6CB0",
		Warning: "#B7791F",
		Error:   "#C53030",
		Border:  "#E2E8F0",
	}
)

func PaletteFor(t inbox.Theme) Palette {
	if t == inbox.ThemeLight {
		return LightPalette
	}
	return DarkPalette
}

// styles are the palette bound to one renderer.
type styles struct {
	header   lipgloss.Style
	item     lipgloss.Style
	meta     lipgloss.Style
	enabled  lipgloss.Style
	disabled lipgloss.Style
	current  lipgloss.Style
	panel    lipgloss.Style
	title    lipgloss.Style
	spinner  lipgloss.Style
	phases   map[voice.Phase]lipgloss.Style
	levels   map[inbox.Level]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, p Palette) styles {
	base := r.NewStyle()
	return styles{
		header:   base.Bold(true).Foreground(p.Text).Background(p.Accent).Padding(0, 1),
		item:     base.Foreground(p.Text).PaddingLeft(2),
		meta:     base.Foreground(p.Muted),
		enabled:  base.Bold(true).Foreground(p.Accent),
		disabled: base.Foreground(p.Subtle).Faint(true),
		current:  base.Bold(true).Foreground(p.Text).Underline(true),
		panel:    base.Padding(0, 2).Border(lipgloss.RoundedBorder()).BorderForeground(p.Border),
		title:    base.Bold(true).Foreground(p.Text).MarginBottom(1),
		spinner:  base.Bold(true).Foreground(p.Accent),
		phases: map[voice.Phase]lipgloss.Style{
			voice.PhaseIdle:       base.Foreground(p.Muted),
			voice.PhaseListening:  base.Bold(true).Foreground(p.Accent),
			voice.PhaseProcessing: base.Foreground(p.Warning),
			voice.PhaseError:      base.Bold(true).Foreground(p.Error),
			voice.PhaseSuccess:    base.Foreground(p.Success),
			voice.PhaseInfo:       base.Foreground(p.Info),
		},
		levels: map[inbox.Level]lipgloss.Style{
			inbox.LevelSuccess: base.Foreground(p.Success),
			inbox.LevelInfo:    base.Foreground(p.Info),
			inbox.LevelWarning: base.Foreground(p.Warning),
			inbox.LevelError:   base.Bold(true).Foreground(p.Error),
		},
	}
}

func (s styles) phase(p voice.Phase) lipgloss.Style {
	if st, ok := s.phases[p]; ok {
		return st
	}
	return s.meta
}

func (s styles) level(l inbox.Level) lipgloss.Style {
	if st, ok := s.levels[l]; ok {
		return st
	}
	return s.meta
}
