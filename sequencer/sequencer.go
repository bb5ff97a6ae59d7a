// Package sequencer plays a drum pattern against a step clock.
//
// The transport is Stopped, Playing or Paused. Pause keeps the playhead where
// it is, including how far into the current step it was; Stop rewinds to step
// 0. Every tick of the clock triggers the voices active on that step.
package sequencer

import (
	"sync"
	"time"

	"beataddicts/studio/timing"
	"beataddicts/studio/util"
)

var logger = util.Logger{}.Ctx("sequencer")

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Instrument plays a named voice. Implementations must not fail loudly: a
// missed hit is logged, never returned.
type Instrument interface {
	Trigger(voice string, offset time.Duration)
}

// Scheduler is the clock driving the sequencer; timing.StepClock in
// production
type Scheduler interface {
	Start(onTick func(tick int), from int, delay time.Duration)
	Stop()
	SetTempo(bpm float64)
	Now() time.Time
	Close()
}

type Option func(*Sequencer)

func WithScheduler(s Scheduler) Option { return func(seq *Sequencer) { seq.clock = s } }

func WithTempo(bpm float64) Option {
	return func(seq *Sequencer) { seq.tempo = timing.Tempo(bpm).Clamp() }
}

func WithPattern(p Pattern) Option { return func(seq *Sequencer) { seq.pattern = sanitize(p) } }

// WithOnStep registers a callback run after each step has been played. It
// is called without the sequencer lock held.
func WithOnStep(fn func(step int)) Option { return func(seq *Sequencer) { seq.onStep = fn } }

type Sequencer struct {
	instrument Instrument
	clock      Scheduler
	onStep     func(step int)

	mu      sync.Mutex
	pattern Pattern
	tempo   timing.Tempo
	state   State
	closed  bool

	// step is the step under the playhead. fired says whether it has been
	// played yet; frac is how far into it a paused playhead is.
	step     int
	fired    bool
	frac     float64
	lastTick time.Time

	// run is bumped whenever the clock is (re)started or stopped, so ticks
	// of an older run can be told apart and dropped
	run int
}

func New(instrument Instrument, opts ...Option) *Sequencer {
	s := &Sequencer{
		instrument: instrument,
		pattern:    DefaultPattern(),
		tempo:      timing.DefaultTempo,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = timing.NewStepClock(float64(s.tempo))
	}
	s.clock.SetTempo(float64(s.tempo))
	return s
}

// SetPattern replaces the whole pattern. Entries with unusable voice names
// are dropped.
func (s *Sequencer) SetPattern(p Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pattern = sanitize(p)
}

// ResetPattern goes back to DefaultPattern
func (s *Sequencer) ResetPattern() { s.SetPattern(DefaultPattern()) }

// Pattern returns a copy of the current pattern
func (s *Sequencer) Pattern() Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern.Clone()
}

// ToggleStep flips one step; step indices outside the bar wrap onto it
func (s *Sequencer) ToggleStep(voice string, step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validVoice(voice) {
		logger.Ctx("ToggleStep").Vol(util.Loud).Log("ignoring voice", voice)
		return
	}
	s.pattern.Toggle(voice, step)
}

func (s *Sequencer) Tempo() timing.Tempo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

// SetTempo clamps bpm to [60, 200]. While playing, the clock is restarted at
// the new rate from where the playhead is now.
func (s *Sequencer) SetTempo(bpm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempo := timing.Tempo(bpm).Clamp()
	if tempo == s.tempo {
		return
	}
	if s.state != Playing {
		s.tempo = tempo
		s.clock.SetTempo(float64(tempo))
		return
	}

	s.frac = s.fractionLocked()
	s.clock.Stop()
	s.tempo = tempo
	s.clock.SetTempo(float64(tempo))
	s.startLocked()
	logger.Ctx("SetTempo").Vol(util.Normal).Log("restarted at", tempo, "BPM")
}

// Play starts or resumes playback. It is a no-op while already playing.
// Sound only comes out once the audio output is ready; until then steps
// still advance silently.
func (s *Sequencer) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state == Playing {
		return
	}
	s.startLocked()
	logger.Ctx("Play").Vol(util.Normal).Log("from step", s.step, "at", s.tempo, "BPM")
}

// Pause stops the clock and keeps the playhead
func (s *Sequencer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Playing {
		return
	}
	s.frac = s.fractionLocked()
	s.haltLocked(Paused)
}

// Stop stops the clock and rewinds to step 0
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haltLocked(Stopped)
	s.step, s.fired, s.frac = 0, false, 0
}

// Close stops playback for good and waits for the clock to wind down. It
// must not be called from an Instrument or an OnStep callback.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.haltLocked(Stopped)
	s.mu.Unlock()

	s.clock.Close()
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentStep is the step under the playhead, for highlighting
func (s *Sequencer) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Position is the playhead in steps, in [0, StepsPerBar). It moves
// continuously while playing.
func (s *Sequencer) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Playing {
		return float64(s.step) + s.fractionLocked()
	}
	return float64(s.step) + s.frac
}

// startLocked (re)starts the clock from the playhead. A step that has not
// been played yet fires at once; otherwise the next step fires when the rest
// of the current one has elapsed.
func (s *Sequencer) startLocked() {
	dur := timing.StepDuration(float64(s.tempo))
	from, delay := s.step, time.Duration(0)
	if s.fired {
		from = s.step + 1
		delay = time.Duration((1 - s.frac) * float64(dur))
	}
	s.lastTick = s.clock.Now().Add(-time.Duration(s.frac * float64(dur)))

	s.run++
	run := s.run
	s.state = Playing
	s.clock.Start(func(tick int) { s.onStepAdvance(run, tick) }, from, delay)
}

func (s *Sequencer) haltLocked(state State) {
	s.clock.Stop()
	s.run++
	s.state = state
}

// fractionLocked is how far the playhead is into the current step
func (s *Sequencer) fractionLocked() float64 {
	if !s.fired {
		return 0
	}
	if s.state != Playing {
		return s.frac
	}
	dur := timing.StepDuration(float64(s.tempo))
	f := float64(s.clock.Now().Sub(s.lastTick)) / float64(dur)
	return util.ClampFloat(f, 0, maxFraction)
}

// keeps step+fraction strictly below the next step
const maxFraction = 1 - 1e-9

// onStepAdvance plays every voice active on the step and moves the playhead
// onto it. Ticks from a stopped or replaced run are dropped.
func (s *Sequencer) onStepAdvance(run, tick int) {
	s.mu.Lock()
	if run != s.run || s.state != Playing {
		s.mu.Unlock()
		return
	}

	step := wrap(tick)
	for _, voice := range s.pattern.Active(step) {
		s.instrument.Trigger(voice, 0)
	}
	s.step, s.fired, s.frac = step, true, 0
	s.lastTick = s.clock.Now()
	onStep := s.onStep
	s.mu.Unlock()

	logger.Ctx("tick").Vol(util.Quieter).Log("step", step)
	if onStep != nil {
		onStep(step)
	}
}

func sanitize(p Pattern) Pattern {
	out := Pattern{}
	for voice, steps := range p {
		if !validVoice(voice) {
			logger.Ctx("SetPattern").Vol(util.Loud).Logf("dropping voice %q", voice)
			continue
		}
		out[voice] = steps
	}
	return out
}
