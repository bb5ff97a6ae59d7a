package waveform

// Source is what an Animator follows
type Source interface {
	Playing() bool
	// Progress is the playhead in [0, 1]
	Progress() float64
}

// DefaultSpeed is how far the phase moves each frame
const DefaultSpeed = 1.0 / 30

// Animator hands out one frame of bars per call while its source plays. When
// the source stops it keeps the last frame and asks for no more.
type Animator struct {
	src   Source
	n     int
	speed float64
	phase float64
	frame []float64
}

func NewAnimator(src Source, n int) *Animator {
	return &Animator{src: src, n: n, speed: DefaultSpeed, frame: Bars(src.Progress(), n, 0)}
}

// Next draws the next frame. It returns false, without drawing, when the
// source is not playing; the caller should stop scheduling frames until it
// plays again.
func (a *Animator) Next() ([]float64, bool) {
	if !a.src.Playing() {
		return a.frame, false
	}
	a.phase += a.speed
	if a.phase >= 1 {
		a.phase--
	}
	a.frame = Bars(a.src.Progress(), a.n, a.phase)
	return a.frame, true
}

// Frame is the most recent frame
func (a *Animator) Frame() []float64 { return a.frame }

// Resize changes the number of bars, redrawing at the current phase
func (a *Animator) Resize(n int) {
	a.n = n
	a.frame = Bars(a.src.Progress(), n, a.phase)
}
