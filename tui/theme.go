package tui

import "github.com/charmbracelet/lipgloss"

type Symbols struct {
	StepEmpty    rune // · inactive step
	StepActive   rune // ● has hit
	StepPlayhead rune // ▶ current playing

	CursorEmpty    rune // ○ cursor on empty
	CursorActive   rune // ◉ cursor on active
	CursorPlayhead rune // ▷ cursor on playhead
}

type Theme struct {
	Symbols Symbols

	Header lipgloss.Style
	Dim    lipgloss.Style
	Beat   lipgloss.Style // first step of each beat
	Active lipgloss.Style
	Cursor lipgloss.Style
	Play   lipgloss.Style
	Warn   lipgloss.Style
	Meter  lipgloss.Style
	Wave   lipgloss.Style
	Played lipgloss.Style
}

// Color roles
var (
	colorFG      = lipgloss.Color("#d7afd7")
	colorMuted   = lipgloss.Color("#5f5f87")
	colorAccent  = lipgloss.Color("#d75fd7")
	colorCursor  = lipgloss.Color("#ff87af")
	colorActive  = lipgloss.Color("#ff5f5f")
	colorWarning = lipgloss.Color("#ffaf00")
	colorSuccess = lipgloss.Color("#ffff5f")
)

func DefaultTheme() *Theme {
	return &Theme{
		Symbols: Symbols{
			StepEmpty:    '·',
			StepActive:   '●',
			StepPlayhead: '▶',

			CursorEmpty:    '○',
			CursorActive:   '◉',
			CursorPlayhead: '▷',
		},
		Header: lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		Dim:    lipgloss.NewStyle().Foreground(colorMuted),
		Beat:   lipgloss.NewStyle().Foreground(colorFG),
		Active: lipgloss.NewStyle().Foreground(colorActive),
		Cursor: lipgloss.NewStyle().Foreground(colorCursor).Bold(true),
		Play:   lipgloss.NewStyle().Foreground(colorSuccess),
		Warn:   lipgloss.NewStyle().Foreground(colorWarning),
		Meter:  lipgloss.NewStyle().Foreground(colorSuccess),
		Wave:   lipgloss.NewStyle().Foreground(colorMuted),
		Played: lipgloss.NewStyle().Foreground(colorAccent),
	}
}
