package synth

import (
	"math"
)

// EnvelopeFloor is where every decay ends. Exponential ramps cannot reach
// zero, so "silent" is this small positive level.
const EnvelopeFloor = 0.001

// ExpRamp moves exponentially from From to To over Length samples and holds
// To afterwards
type ExpRamp struct {
	From, To float64
	Length   int
}

// Decay is a ramp from peak down to EnvelopeFloor
func Decay(peak float64, length int) ExpRamp {
	return ExpRamp{From: peak, To: EnvelopeFloor, Length: length}
}

// At returns the level at sample i
func (r ExpRamp) At(i int) float64 {
	from, to := floor(r.From), floor(r.To)
	switch {
	case i <= 0:
		return from
	case i >= r.Length:
		return to
	}
	return from * math.Pow(to/from, float64(i)/float64(r.Length))
}

// Apply multiplies signal by the ramp in place
func (r ExpRamp) Apply(signal []float64) {
	for i := range signal {
		signal[i] *= r.At(i)
	}
}

func floor(v float64) float64 {
	return math.Max(v, EnvelopeFloor)
}
