package timing

import (
	"math"
	"time"

	"github.com/faiface/beep"
)

// Tempo is a type that represents a tempo in beats per minute
type Tempo float64

const (
	MinTempo     Tempo = 60
	MaxTempo     Tempo = 200
	DefaultTempo Tempo = 120

	// floor used when a tempo would otherwise divide by zero
	safeTempo Tempo = 1
)

// Safe replaces a non-positive or non-finite tempo with 1 BPM
func (t Tempo) Safe() Tempo {
	f := float64(t)
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return safeTempo
	}
	return t
}

// Clamp limits the tempo to the range a sequencer accepts, [60, 200]
func (t Tempo) Clamp() Tempo {
	t = t.Safe()
	if t < MinTempo {
		return MinTempo
	}
	if t > MaxTempo {
		return MaxTempo
	}
	return t
}

// Quantum returns the duration of a single beat
func (t Tempo) Quantum() time.Duration {
	return time.Duration(float64(time.Minute) / float64(t.Safe()))
}

// Sixteenth returns the duration of a single sixteenth note, i.e. one step
func (t Tempo) Sixteenth() time.Duration {
	return Timing{Duration: t.Quantum()}.Quantise(Sixteenth).Duration
}

// Count returns the number of samples in a single beat for a given format.
func (t Tempo) Count(of beep.Format) (samples int) {
	return of.SampleRate.N(t.Quantum())
}

// StepDurationMs is (60000 / bpm) / 4, i.e. 15000 / bpm
func StepDurationMs(bpm float64) float64 {
	return 15000 / float64(Tempo(bpm).Safe())
}

// StepDuration is StepDurationMs as a time.Duration
func StepDuration(bpm float64) time.Duration {
	return time.Duration(StepDurationMs(bpm) * float64(time.Millisecond))
}

type Timing struct {
	Duration time.Duration
	Samples  int
}

func (Timing) From(t Tempo, f beep.Format) Timing {
	return Timing{Duration: t.Quantum(), Samples: t.Count(f)}
}

func (t Timing) Quantise(q Quantisation) Timing {
	if q <= 0 {
		q = Quarter
	}
	return Timing{
		Samples:  t.Samples / int(q),
		Duration: t.Duration / time.Duration(q),
	}
}

// Quantisation is the number of subdivisions of a beat
type Quantisation int

const (
	Quarter   Quantisation = 1
	Eighth    Quantisation = 2
	Sixteenth Quantisation = 4
)
