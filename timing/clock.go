package timing

import (
	"sync"
	"time"

	"beataddicts/studio/util"
)

var logger = util.Logger{}.Ctx("timing")

// MaxLag is how many whole steps the clock may fall behind before it gives up
// catching up and resynchronises to now
const MaxLag = 4

// StepClock fires a callback once per sixteenth note at the current tempo.
//
// Each tick is scheduled against the previous deadline (next += interval) on
// the monotonic clock, so scheduling jitter does not accumulate over long runs.
// It owns no audio state.
type StepClock struct {
	mu     sync.Mutex
	tempo  Tempo
	run    *clockRun
	closed bool
	wg     sync.WaitGroup
}

type clockRun struct {
	stop chan struct{}
}

// NewStepClock returns a stopped clock. Tempos that are not positive and
// finite are replaced with 1 BPM.
func NewStepClock(bpm float64) *StepClock {
	return &StepClock{tempo: Tempo(bpm).Safe()}
}

// SetTempo changes the interval used from the next scheduled tick on. Callers
// wanting the pending tick rescheduled restart the clock.
func (c *StepClock) SetTempo(bpm float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tempo = Tempo(bpm).Safe()
}

func (c *StepClock) Tempo() Tempo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tempo
}

// StepDuration is the current interval between ticks
func (c *StepClock) StepDuration() time.Duration {
	return StepDuration(float64(c.Tempo()))
}

func (c *StepClock) Now() time.Time { return time.Now() }

func (c *StepClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil
}

// Start begins a new run: onTick(from) fires after delay, then onTick(from+1),
// onTick(from+2), ... one step apart. A run already in progress is stopped
// first. Ticks of one run are delivered in order from a single goroutine.
func (c *StepClock) Start(onTick func(tick int), from int, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		logger.Vol(util.Loud).Log("start after close ignored")
		return
	}
	c.stopLocked()

	r := &clockRun{stop: make(chan struct{})}
	c.run = r
	c.wg.Add(1)
	go c.loop(r, onTick, from, util.Max(delay, 0))
}

// Stop cancels the pending tick. Once Stop returns, the stopped run will not
// start another callback.
func (c *StepClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *StepClock) stopLocked() {
	if c.run == nil {
		return
	}
	close(c.run.stop)
	c.run = nil
}

// Close stops the clock for good and waits for its goroutine to exit. It must
// not be called from inside onTick.
func (c *StepClock) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopLocked()
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *StepClock) loop(r *clockRun, onTick func(int), tick int, delay time.Duration) {
	defer c.wg.Done()
	logger := logger.Ctx("StepClock.loop").Vol(util.Quiet)

	next := time.Now().Add(delay)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-timer.C:
		}

		c.mu.Lock()
		if c.run != r {
			c.mu.Unlock()
			return
		}
		interval := StepDuration(float64(c.tempo))
		c.mu.Unlock()

		onTick(tick)
		tick++

		next = next.Add(interval)
		now := time.Now()
		if now.Sub(next) > MaxLag*interval {
			logger.Log("fell behind by", now.Sub(next), "resynchronising")
			next = now
		}
		timer.Reset(next.Sub(now))
	}
}
