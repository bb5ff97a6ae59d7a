// Package waveform makes up bar heights for a progress display. Nothing here
// analyses audio: the shapes are stylised and only follow the playhead.
package waveform

import (
	"math"

	"beataddicts/studio/util"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
	"github.com/cwbudde/algo-dsp/dsp/window"
)

var logger = util.Logger{}.Ctx("waveform")

// MinHeight keeps every bar visible
const MinHeight = 0.05

// bars ahead of the playhead are drawn lower than those behind it
const aheadLevel = 0.6

// taper rounds off both ends of a bar row
func taper(n int) []float64 {
	w, err := window.Tukey(n, 0.5)
	if err != nil || len(w) != n {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	}
	return w
}

func height(v float64) float64 {
	return util.ClampFloat(MinHeight+(1-MinHeight)*v, 0, 1)
}

// Bars is a moving sine placeholder of n bars. progress is in [0, 1]; phase
// moves the pattern along and is advanced once per frame by an Animator.
func Bars(progress float64, n int, phase float64) []float64 {
	if n <= 0 {
		return nil
	}
	progress = util.ClampFloat(progress, 0, 1)
	shape := taper(n)
	played := Played(progress, n)

	out := make([]float64, n)
	for i := range out {
		x := float64(i) / float64(n)
		v := 0.5 + 0.3*math.Sin(2*math.Pi*(3*x+phase)) + 0.2*math.Sin(2*math.Pi*(7*x-1.3*phase))
		if i >= played {
			v *= aheadLevel
		}
		out[i] = height(v * shape[i])
	}
	return out
}

// Played is the number of bars behind the playhead
func Played(progress float64, n int) int {
	return util.ClampInt(int(math.Round(util.ClampFloat(progress, 0, 1)*float64(n))), 0, util.Max(n, 0))
}

// StaticBars is a fixed, pseudo-random look for a source that is not
// playing. The same seed always gives the same bars.
func StaticBars(seed int64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	gen := signal.NewGeneratorWithOptions(
		[]core.ProcessorOption{core.WithSampleRate(float64(n))},
		signal.WithSeed(seed),
	)
	noise, err := gen.WhiteNoise(1, n)
	if err != nil {
		logger.Ctx("StaticBars").Vol(util.Loud).Log(err)
		noise = make([]float64, n)
	}

	shape := taper(n)
	out := make([]float64, n)
	for i := range out {
		// average with the neighbours so the row reads as one shape
		sum, k := 0.0, 0
		for j := i - 1; j <= i+1; j++ {
			if j >= 0 && j < n {
				sum += math.Abs(noise[j])
				k++
			}
		}
		out[i] = height(sum / float64(k) * shape[i])
	}
	return out
}
