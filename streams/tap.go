package streams

import (
	"math"
	"sync/atomic"

	"github.com/faiface/beep"
)

// Tap passes a streamer through untouched while recording the peak level and
// the number of frames that went by
type Tap struct {
	beep.Streamer

	peak   atomic.Uint64 // math.Float64bits
	frames atomic.Int64
}

func NewTap(s beep.Streamer) *Tap { return &Tap{Streamer: s} }

func (t *Tap) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = t.Streamer.Stream(samples)
	peak := 0.0
	for _, s := range samples[:n] {
		peak = math.Max(peak, math.Max(math.Abs(s[0]), math.Abs(s[1])))
	}
	t.peak.Store(math.Float64bits(peak))
	t.frames.Add(int64(n))
	return n, ok
}

// Peak is the loudest sample of the most recent chunk
func (t *Tap) Peak() float64 { return math.Float64frombits(t.peak.Load()) }

// Frames is how many frames have been streamed so far
func (t *Tap) Frames() int64 { return t.frames.Load() }
