// Package synth renders drum hits procedurally and drops them onto the mix bus.
//
// Every hit is rendered from scratch into its own buffer and scheduled as an
// independent one-shot; nothing is shared between hits and nothing needs to be
// cleaned up by the caller.
package synth

import (
	"math/rand/v2"
	"sync"
	"time"

	"beataddicts/studio/streams"
	"beataddicts/studio/util"

	"github.com/faiface/beep"
)

var logger = util.Logger{}.Ctx("synth")

// Output is the part of the audio engine a synth needs
type Output interface {
	Ready() bool
	Format() beep.Format
	Play(s ...beep.Streamer) error
}

type Synth struct {
	out Output

	mu   sync.RWMutex
	gain map[VoiceType]float64
}

func New(out Output) *Synth {
	return &Synth{out: out, gain: map[VoiceType]float64{}}
}

// SetGain sets a per-voice level in [0, 1]; voices default to 1
func (s *Synth) SetGain(voice string, gain float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain[VoiceType(voice)] = util.ClampFloat(gain, 0, 1)
}

func (s *Synth) Gain(voice string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.gain[VoiceType(voice)]; ok {
		return g
	}
	return 1
}

// Trigger plays one hit of the named voice, offset from now. It never fails
// loudly: an output that is not ready yet, an unknown voice or a render error
// are logged and the hit is skipped.
func (s *Synth) Trigger(voice string, offset time.Duration) {
	logger := logger.Ctx("Trigger")
	if !s.out.Ready() {
		logger.Vol(util.Quiet).Log("output not ready, skipping", voice)
		return
	}
	v, ok := Lookup(voice)
	if !ok {
		logger.Vol(util.Loud).Log("unknown voice", voice)
		return
	}

	hit, err := s.Hit(v, rand.Int64())
	if err != nil {
		logger.Vol(util.Loud).Log(err)
		return
	}

	format := s.out.Format()
	delay := format.SampleRate.N(util.Max(offset, 0))
	if err := s.out.Play(streams.Delay(delay, hit.Streamer(0, hit.Len()))); err != nil {
		logger.Vol(util.Loud).Log("play", voice, ":", err)
	}
}

// Hit renders one hit of v at the output's format, with the voice gain applied
func (s *Synth) Hit(v Voice, seed int64) (*beep.Buffer, error) {
	format := s.out.Format()
	signal, err := Render(v, float64(format.SampleRate), seed)
	if err != nil {
		return nil, err
	}
	if g := s.Gain(string(v.Type)); g != 1 {
		for i := range signal {
			signal[i] *= g
		}
	}
	return streams.Mono(format, signal), nil
}

// Sound is a stream of fresh hits of the named voice, one per call. Unknown
// voices and render errors give empty chunks.
func (s *Synth) Sound(voice string) streams.Stream {
	format := s.out.Format()
	return func() *streams.FStreamer {
		v, ok := Lookup(voice)
		if !ok {
			return streams.F(format, beep.Silence(0))
		}
		hit, err := s.Hit(v, rand.Int64())
		if err != nil {
			logger.Ctx("Sound").Vol(util.Loud).Log(err)
			return streams.F(format, beep.Silence(0))
		}
		return streams.F(format, hit.Streamer(0, hit.Len()))
	}
}
