// Package tui is the studio screen: a step grid for the sequencer and a deck
// for the player, driven by bubbletea.
package tui

import (
	"time"

	"beataddicts/studio/player"
	"beataddicts/studio/sequencer"
	"beataddicts/studio/timing"
	"beataddicts/studio/util"
	"beataddicts/studio/waveform"

	tea "github.com/charmbracelet/bubbletea"
)

var logger = util.Logger{}.Ctx("tui")

const (
	frameRate  = time.Second / 30
	tempoNudge = 5
	seekNudge  = 5 * time.Second
	volNudge   = 0.1

	defaultWaveWidth = 48
	minWaveWidth     = 8
)

// Transport is the sequencer as seen from the grid
type Transport interface {
	Apply(c sequencer.Command)
	Pattern() sequencer.Pattern
	Tempo() timing.Tempo
	State() sequencer.State
	CurrentStep() int
}

// Deck is the player as seen from the screen
type Deck interface {
	Play()
	Pause()
	Seek(to time.Duration)
	SetVolume(v float64)
	ToggleMute()
	Retry()
	Status() player.Status
}

// Output is the audio engine; it is opened on the first key press
type Output interface {
	EnsureReady() error
	Ready() bool
}

// Feed carries sequencer steps and player updates onto the UI goroutine. Its
// methods never block, so they are safe as sequencer and player callbacks.
type Feed struct {
	steps  chan int
	status chan player.Status
}

func NewFeed() *Feed {
	return &Feed{steps: make(chan int, 1), status: make(chan player.Status, 1)}
}

func (f *Feed) OnStep(step int) {
	select {
	case f.steps <- step:
	default:
	}
}

func (f *Feed) OnStatus(s player.Status) {
	// keep only the newest status
	select {
	case <-f.status:
	default:
	}
	select {
	case f.status <- s:
	default:
	}
}

type stepMsg int

type statusMsg player.Status

type frameMsg struct{}

func listenSteps(f *Feed) tea.Cmd {
	return func() tea.Msg { return stepMsg(<-f.steps) }
}

func listenStatus(f *Feed) tea.Cmd {
	return func() tea.Msg { return statusMsg(<-f.status) }
}

func nextFrame() tea.Cmd {
	return tea.Tick(frameRate, func(time.Time) tea.Msg { return frameMsg{} })
}

// deckView is what the waveform animator follows
type deckView struct{ status player.Status }

func (d *deckView) Playing() bool { return d.status.State == player.Playing }

func (d *deckView) Progress() float64 {
	if d.status.Duration <= 0 {
		return 0
	}
	return float64(d.status.Position) / float64(d.status.Duration)
}

type Model struct {
	Transport Transport
	Deck      Deck // nil when there is no source
	Output    Output
	Theme     *Theme
	Voices    []string

	feed *Feed

	row, col  int
	step      int
	waveWidth int
	deck      *deckView
	anim      *waveform.Animator
	animating bool
	message   string
	quitting  bool
}

// NewModel builds the studio screen. voices are the grid rows, in order; deck
// may be nil.
func NewModel(t Transport, deck Deck, out Output, feed *Feed, voices []string) Model {
	m := Model{
		Transport: t,
		Deck:      deck,
		Output:    out,
		Theme:     DefaultTheme(),
		Voices:    voices,
		feed:      feed,
		deck:      &deckView{},
		waveWidth: defaultWaveWidth,
	}
	if deck != nil {
		m.deck.status = deck.Status()
	}
	m.anim = waveform.NewAnimator(m.deck, m.waveWidth)
	return m
}

func (m Model) Init() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	return tea.Batch(listenSteps(m.feed), listenStatus(m.feed))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		// the waveform spans the terminal, less a margin
		m.waveWidth = util.Max(msg.Width-2, minWaveWidth)
		m.anim.Resize(m.waveWidth)

	case stepMsg:
		m.step = int(msg)
		return m, listenSteps(m.feed)

	case statusMsg:
		m.deck.status = player.Status(msg)
		cmds := []tea.Cmd{listenStatus(m.feed)}
		if m.deck.Playing() && !m.animating {
			m.animating = true
			cmds = append(cmds, nextFrame())
		}
		return m, tea.Batch(cmds...)

	case frameMsg:
		if _, ok := m.anim.Next(); ok {
			return m, nextFrame()
		}
		m.animating = false
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "q" || key == "ctrl+c" {
		m.quitting = true
		m.Transport.Apply(sequencer.StopCmd{})
		if m.Deck != nil {
			m.Deck.Pause()
		}
		return m, tea.Quit
	}

	// the first key press is the gesture that opens the audio output
	if !m.Output.Ready() {
		if err := m.Output.EnsureReady(); err != nil {
			logger.Ctx("handleKey").Vol(util.Loud).Log(err)
			m.message = "audio unavailable: " + err.Error()
		} else {
			m.message = ""
		}
	}

	switch key {
	case "up", "k":
		m.row = util.Max(m.row-1, 0)
	case "down", "j":
		m.row = util.Min(m.row+1, util.Max(len(m.Voices)-1, 0))
	case "left", "h":
		m.col = (m.col + sequencer.StepsPerBar - 1) % sequencer.StepsPerBar
	case "right", "l":
		m.col = (m.col + 1) % sequencer.StepsPerBar
	case " ", "enter", "x":
		if len(m.Voices) > 0 {
			m.Transport.Apply(sequencer.ToggleStepCmd{Voice: m.Voices[m.row], Step: m.col})
		}
	case "p":
		m.Transport.Apply(sequencer.TogglePlayCmd{})
	case "s":
		m.Transport.Apply(sequencer.StopCmd{})
		m.step = 0
	case "+", "=":
		m.Transport.Apply(sequencer.NudgeTempoCmd{Delta: tempoNudge})
	case "-", "_":
		m.Transport.Apply(sequencer.NudgeTempoCmd{Delta: -tempoNudge})
	case "r":
		m.Transport.Apply(sequencer.ResetPatternCmd{})
	default:
		m.handleDeckKey(key)
	}
	return m, nil
}

func (m *Model) handleDeckKey(key string) {
	if m.Deck == nil {
		return
	}
	s := m.Deck.Status()
	switch key {
	case "a":
		if s.State == player.Playing {
			m.Deck.Pause()
		} else {
			m.Deck.Play()
		}
	case "[":
		m.Deck.Seek(s.Position - seekNudge)
	case "]":
		m.Deck.Seek(s.Position + seekNudge)
	case ",":
		m.Deck.SetVolume(s.Volume - volNudge)
	case ".":
		m.Deck.SetVolume(s.Volume + volNudge)
	case "m":
		m.Deck.ToggleMute()
	case "R":
		m.Deck.Retry()
	}
}
