package synth

import (
	"math"
	"time"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
	"github.com/cwbudde/algo-dsp/dsp/signal"
	"github.com/pkg/errors"
)

const (
	butterworthQ = 1 / math.Sqrt2

	// the kick pitch falls to this fraction of BaseFreq ...
	kickPitchDrop = 0.3
	// ... over this long
	kickPitchTime = 100 * time.Millisecond
)

// Render synthesises one hit of v as a mono signal. seed picks the noise
// sequence for the noisy voices, so equal seeds give equal hits.
func Render(v Voice, sampleRate float64, seed int64) ([]float64, error) {
	n := samples(v.Duration, sampleRate)
	if n <= 0 || sampleRate <= 0 {
		return nil, errors.Errorf("%s: empty render (%v at %v Hz)", v.Type, v.Duration, sampleRate)
	}

	switch v.Type {
	case KickVoice:
		return renderKick(v, sampleRate, n), nil
	case SnareVoice:
		return renderSnare(v, sampleRate, n, seed)
	case HiHatVoice:
		c := design.Highpass(v.BaseFreq, q(v), sampleRate)
		return renderFilteredNoise(v, sampleRate, n, seed, c)
	case OpenHatVoice:
		return renderFilteredNoise(v, sampleRate, n, seed, unityBandpass(v.BaseFreq, q(v), sampleRate))
	default:
		return nil, errors.Errorf("unknown voice type %q", v.Type)
	}
}

// sine with an exponential pitch drop and an exponential amplitude decay
func renderKick(v Voice, sampleRate float64, n int) []float64 {
	pitch := ExpRamp{
		From:   v.BaseFreq,
		To:     v.BaseFreq * kickPitchDrop,
		Length: samples(kickPitchTime, sampleRate),
	}
	out := make([]float64, n)
	osc := Oscillator{Wave: Sine, SampleRate: sampleRate}
	osc.Fill(out, pitch.At)
	Decay(v.Peak, n).Apply(out)
	return out
}

// noise over the whole duration plus a triangle tone decaying twice as fast
func renderSnare(v Voice, sampleRate float64, n int, seed int64) ([]float64, error) {
	out, err := noise(v.NoiseLevel, sampleRate, n, seed)
	if err != nil {
		return nil, err
	}
	Decay(1, n).Apply(out)

	tone := make([]float64, n)
	osc := Oscillator{Wave: Triangle, SampleRate: sampleRate}
	osc.Fill(tone, func(int) float64 { return v.BaseFreq })
	Decay(v.Peak, n/2).Apply(tone)

	for i := range out {
		out[i] += tone[i]
	}
	return out, nil
}

func renderFilteredNoise(v Voice, sampleRate float64, n int, seed int64, c biquad.Coefficients) ([]float64, error) {
	out, err := noise(1, sampleRate, n, seed)
	if err != nil {
		return nil, err
	}
	biquad.NewSection(c).ProcessBlock(out)
	Decay(v.Peak, n).Apply(out)
	return out, nil
}

func noise(level, sampleRate float64, n int, seed int64) ([]float64, error) {
	gen := signal.NewGeneratorWithOptions(
		[]core.ProcessorOption{core.WithSampleRate(sampleRate)},
		signal.WithSeed(seed),
	)
	out, err := gen.WhiteNoise(level, n)
	return out, errors.Wrap(err, "noise")
}

// unityBandpass is a bandpass with 0 dB at the centre frequency. The designer
// gives constant skirt gain, whose peak is q.
func unityBandpass(freq, q, sampleRate float64) biquad.Coefficients {
	c := design.Bandpass(freq, q, sampleRate)
	c.B0 /= q
	c.B1 /= q
	c.B2 /= q
	return c
}

func samples(d time.Duration, sampleRate float64) int {
	return int(math.Round(d.Seconds() * sampleRate))
}

func q(v Voice) float64 {
	if v.Q <= 0 {
		return butterworthQ
	}
	return v.Q
}
