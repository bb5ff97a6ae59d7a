package synth

import (
	"math"
)

// Waveform maps a phase in cycles, [0, 1), to a level in [-1, 1]
type Waveform func(phase float64) float64

func Sine(phase float64) float64 { return math.Sin(2 * math.Pi * phase) }

// Triangle starts at zero and rises, like a sine
func Triangle(phase float64) float64 {
	switch {
	case phase < 0.25:
		return 4 * phase
	case phase < 0.75:
		return 2 - 4*phase
	default:
		return 4*phase - 4
	}
}

// Oscillator accumulates phase so that the frequency can change per sample
// without discontinuities
type Oscillator struct {
	Wave       Waveform
	SampleRate float64
	phase      float64
}

// Next returns the current sample and advances by one sample at freq Hz
func (o *Oscillator) Next(freq float64) float64 {
	v := o.Wave(o.phase)
	o.phase += freq / o.SampleRate
	o.phase -= math.Floor(o.phase)
	return v
}

// Fill renders len(out) samples with a frequency given per sample
func (o *Oscillator) Fill(out []float64, freq func(i int) float64) {
	for i := range out {
		out[i] = o.Next(freq(i))
	}
}
