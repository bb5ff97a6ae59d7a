// Package engine owns the process-wide audio output: one mix bus feeding one
// device. It starts Uninitialized and only opens the device when EnsureReady is
// called, which front ends do on the first user interaction.
package engine

import (
	"sync"
	"time"

	"beataddicts/studio/util"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/pkg/errors"
)

var logger = util.Logger{}.Ctx("engine")

// ErrNotReady is returned when sound is requested before the output exists
var ErrNotReady = errors.New("audio output not initialised")

// DefaultFormat is CD quality stereo
var DefaultFormat = beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}

type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Sink is where the mix bus ends up. Lock and Unlock guard any streamer that
// the sink may be pulling from.
type Sink interface {
	Init(format beep.Format, bufferSize int, bus beep.Streamer) error
	Lock()
	Unlock()
}

// SpeakerSink plays through the system audio device
type SpeakerSink struct{}

func (SpeakerSink) Init(format beep.Format, bufferSize int, bus beep.Streamer) error {
	if err := speaker.Init(format.SampleRate, bufferSize); err != nil {
		return errors.Wrap(err, "open audio device")
	}
	speaker.Play(bus)
	return nil
}

func (SpeakerSink) Lock()   { speaker.Lock() }
func (SpeakerSink) Unlock() { speaker.Unlock() }

// offlineSink has no device; the bus is pulled with Engine.Render
type offlineSink struct{ mu sync.Mutex }

func (*offlineSink) Init(beep.Format, int, beep.Streamer) error { return nil }
func (s *offlineSink) Lock()                                    { s.mu.Lock() }
func (s *offlineSink) Unlock()                                  { s.mu.Unlock() }

type Engine struct {
	format     beep.Format
	bufferSize int
	sink       Sink
	bus        *beep.Mixer

	mu    sync.Mutex
	state State
}

// New returns an engine that will play through the speaker once ready
func New(format beep.Format, buffer time.Duration) *Engine {
	return NewWithSink(format, format.SampleRate.N(buffer), SpeakerSink{})
}

// NewOffline returns an engine with no device, for rendering and tests
func NewOffline(format beep.Format) *Engine {
	return NewWithSink(format, 0, &offlineSink{})
}

func NewWithSink(format beep.Format, bufferSize int, sink Sink) *Engine {
	return &Engine{
		format:     format,
		bufferSize: bufferSize,
		sink:       sink,
		bus:        &beep.Mixer{},
	}
}

func (e *Engine) Format() beep.Format { return e.format }

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Ready() bool { return e.State() == Ready }

// EnsureReady opens the output on first use. A failed attempt leaves the
// engine Uninitialized so that the next interaction can try again.
func (e *Engine) EnsureReady() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Ready {
		return nil
	}

	if err := e.sink.Init(e.format, e.bufferSize, e.bus); err != nil {
		logger.Vol(util.Loud).Log("init failed:", err)
		return err
	}
	e.state = Ready
	logger.Vol(util.Normal).Log("ready at", e.format.SampleRate, "Hz")
	return nil
}

// Play adds streamers to the mix bus. They are dropped from the bus once
// drained.
func (e *Engine) Play(s ...beep.Streamer) error {
	if !e.Ready() {
		return ErrNotReady
	}
	e.sink.Lock()
	e.bus.Add(s...)
	e.sink.Unlock()
	return nil
}

// Lock must be held while mutating a streamer that is on the bus
func (e *Engine) Lock()   { e.sink.Lock() }
func (e *Engine) Unlock() { e.sink.Unlock() }

// Active is the number of streamers currently on the bus
func (e *Engine) Active() int {
	e.sink.Lock()
	defer e.sink.Unlock()
	return e.bus.Len()
}

// Clear drops everything on the bus, cutting off hits that are still ringing
func (e *Engine) Clear() {
	e.sink.Lock()
	e.bus.Clear()
	e.sink.Unlock()
}

// Render pulls n frames from the bus. It is how an offline engine is driven;
// on a speaker engine it steals audio from the device.
func (e *Engine) Render(n int) [][2]float64 {
	out := make([][2]float64, n)
	e.sink.Lock()
	e.bus.Stream(out)
	e.sink.Unlock()
	return out
}
