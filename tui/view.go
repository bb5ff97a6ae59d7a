package tui

import (
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	"beataddicts/studio/sequencer"
	"beataddicts/studio/util"
	"beataddicts/studio/waveform"

	"github.com/charmbracelet/lipgloss"
)

var barRunes = []rune("▁▂▃▄▅▆▇█")

const meterWidth = 20

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(m.headerView())
	out.WriteString("\n\n")
	out.WriteString(m.gridView())
	if m.Deck != nil {
		out.WriteString("\n")
		out.WriteString(m.deckPanel())
	}
	if m.message != "" {
		out.WriteString("\n")
		out.WriteString(m.Theme.Warn.Render(m.message))
	}
	out.WriteString("\n\n")
	out.WriteString(m.helpView())
	return out.String()
}

func (m Model) headerView() string {
	state := strings.ToUpper(m.Transport.State().String())
	audio := ""
	if !m.Output.Ready() {
		audio = "  (press any key to start audio)"
	}
	return m.Theme.Header.Render(fmt.Sprintf("beatbox  %-7s  %3.0fbpm  step:%02d", state, float64(m.Transport.Tempo()), m.step)) +
		m.Theme.Dim.Render(audio)
}

func (m Model) gridView() string {
	pattern := m.Transport.Pattern()
	playing := m.Transport.State() != sequencer.Stopped
	width := 0
	for _, v := range m.Voices {
		width = util.Max(width, len(v))
	}

	sym := m.Theme.Symbols
	rows := make([]string, 0, len(m.Voices))
	for r, voice := range m.Voices {
		var row strings.Builder
		label := fmt.Sprintf("%-*s ", width, voice)
		if r == m.row {
			row.WriteString(m.Theme.Cursor.Render(label))
		} else {
			row.WriteString(m.Theme.Dim.Render(label))
		}

		for step := 0; step < sequencer.StepsPerBar; step++ {
			on := pattern[voice].Has(step)
			head := playing && step == m.step
			cursor := r == m.row && step == m.col

			var ch rune
			style := m.Theme.Dim
			switch {
			case cursor && head:
				ch, style = sym.CursorPlayhead, m.Theme.Cursor
			case cursor && on:
				ch, style = sym.CursorActive, m.Theme.Cursor
			case cursor:
				ch, style = sym.CursorEmpty, m.Theme.Cursor
			case head:
				ch, style = sym.StepPlayhead, m.Theme.Play
			case on:
				ch, style = sym.StepActive, m.Theme.Active
			default:
				ch = sym.StepEmpty
				if step%4 == 0 {
					style = m.Theme.Beat
				}
			}
			row.WriteString(style.Render(string(ch)))
			if step%4 == 3 && step != sequencer.StepsPerBar-1 {
				row.WriteString(" ")
			}
		}
		rows = append(rows, row.String())
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) deckPanel() string {
	s := m.deck.status
	name := path.Base(s.Source)
	if s.Source == "" {
		name = "no source"
	}

	line := fmt.Sprintf("%s  %-8s %s / %s  vol %3.0f%%", name, s.State, clock(s.Position), clock(s.Duration), s.Volume*100)
	if s.Muted {
		line += " (muted)"
	}

	var bars []float64
	if m.deck.Playing() || m.animating {
		bars = m.anim.Frame()
	} else {
		bars = waveform.Bars(m.deck.Progress(), m.waveWidth, 0)
	}
	wave := m.waveView(bars, waveform.Played(m.deck.Progress(), len(bars)))

	out := []string{m.Theme.Header.Render(line), wave, m.meterView(s.Peak)}
	if s.Err != nil {
		out = append(out, m.Theme.Warn.Render(s.Err.Message()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

func (m Model) waveView(bars []float64, played int) string {
	var playedPart, rest strings.Builder
	for i, h := range bars {
		idx := util.ClampInt(int(math.Round(h*float64(len(barRunes)-1))), 0, len(barRunes)-1)
		if i < played {
			playedPart.WriteRune(barRunes[idx])
		} else {
			rest.WriteRune(barRunes[idx])
		}
	}
	return m.Theme.Played.Render(playedPart.String()) + m.Theme.Wave.Render(rest.String())
}

// meterView draws a peak level on a dB scale from -60 to 0
func (m Model) meterView(peak float64) string {
	n := 0
	if peak > 0 {
		db := 20 * math.Log10(peak)
		n = util.ClampInt(int(math.Round((db+60)/60*meterWidth)), 0, meterWidth)
	}
	return m.Theme.Meter.Render(strings.Repeat("█", n)) + m.Theme.Dim.Render(strings.Repeat("░", meterWidth-n))
}

func (m Model) helpView() string {
	help := "hjkl:move  space:toggle  p:play/pause  s:stop  +/-:tempo  r:reset  q:quit"
	if m.Deck != nil {
		help += "\na:play/pause deck  [/]:seek  ,/.:volume  m:mute  R:retry"
	}
	return m.Theme.Dim.Render(help)
}

func clock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
