// Package player streams one audio source at a time through the engine.
//
// A Player goes Idle -> Loading -> Ready | Error on Load, and Ready -> Playing
// <-> Paused on the transport. Replacing the source releases the previous one
// completely before the new one starts loading, and a load that is overtaken
// by a newer one is thrown away when it completes.
package player

import (
	"context"
	"math"
	"sync"
	"time"

	"beataddicts/studio/streams"
	"beataddicts/studio/util"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
)

var logger = util.Logger{}.Ctx("player")

// DefaultTick is how often position updates are pushed while playing
const DefaultTick = 250 * time.Millisecond

type State int

const (
	Idle State = iota
	Loading
	Ready
	Playing
	Paused
	// Blocked means the audio output is not open yet; the source is loaded and
	// Play can be pressed again once it is
	Blocked
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Blocked:
		return "blocked"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a snapshot of a player
type Status struct {
	Source   string
	State    State
	Position time.Duration
	// Duration is zero while unknown
	Duration time.Duration
	Volume   float64
	Muted    bool
	// Peak is the level of the latest chunk sent to the output, for meters
	Peak float64
	Err  *MediaError
}

// Output is the part of the audio engine a player needs
type Output interface {
	Ready() bool
	Format() beep.Format
	Play(s ...beep.Streamer) error
	Lock()
	Unlock()
}

type Option func(*Player)

func WithFetcher(f Fetcher) Option { return func(p *Player) { p.fetcher = f } }

// WithTick sets the position update interval
func WithTick(d time.Duration) Option { return func(p *Player) { p.tick = d } }

type Player struct {
	out     Output
	fetcher Fetcher
	tick    time.Duration

	mu       sync.Mutex
	status   Status
	onChange func(Status)
	closed   bool

	// gen identifies the current load; completions of older loads are dropped
	gen           int
	cancel        context.CancelFunc
	playAfterLoad bool

	res        *resource
	stopTicker chan struct{}

	wg sync.WaitGroup
}

func New(out Output, opts ...Option) *Player {
	p := &Player{
		out:     out,
		fetcher: DefaultFetcher(),
		tick:    DefaultTick,
		status:  Status{Volume: 1},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnChange registers a callback for every state change and position update.
// It is called without the player lock held, from whichever goroutine caused
// the change.
func (p *Player) OnChange(fn func(Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Load releases the current source and starts loading a new one. An empty
// source leaves the player Idle with ErrSourceMissing.
func (p *Player) Load(source string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.playAfterLoad = false
	p.loadLocked(source)
	p.notifyUnlock()
}

// Retry loads the current source again
func (p *Player) Retry() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	logger.Ctx("Retry").Vol(util.Normal).Log(p.status.Source)
	p.playAfterLoad = false
	p.loadLocked(p.status.Source)
	p.notifyUnlock()
}

func (p *Player) loadLocked(source string) {
	p.releaseLocked()
	p.gen++
	p.status = Status{Source: source, Volume: p.status.Volume, Muted: p.status.Muted}

	if source == "" {
		p.status.State = Idle
		logger.Ctx("Load").Vol(util.Normal).Log(ErrSourceMissing)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.status.State = Loading
	logger.Ctx("Load").Vol(util.Normal).Log(source)

	p.wg.Add(1)
	go p.load(ctx, p.gen, source)
}

func (p *Player) load(ctx context.Context, gen int, source string) {
	defer p.wg.Done()
	logger := logger.Ctx("load")

	res, err := p.open(ctx, source)

	p.mu.Lock()
	if gen != p.gen || p.closed {
		p.mu.Unlock()
		logger.Vol(util.Quiet).Log("discarding stale load of", source)
		if res != nil {
			res.close()
		}
		return
	}
	p.cancel = nil

	if err != nil {
		me := classify(err)
		logger.Vol(util.Loud).Log(source, ":", me)
		p.status.State = Error
		p.status.Err = me
		p.playAfterLoad = false
		p.notifyUnlock()
		return
	}

	p.res = res
	p.status.State = Ready
	p.status.Duration = res.duration()
	play := p.playAfterLoad
	p.playAfterLoad = false
	logger.Vol(util.Normal).Log(source, "ready,", p.status.Duration)
	p.notifyUnlock()

	if play {
		p.Play()
	}
}

func (p *Player) open(ctx context.Context, source string) (*resource, error) {
	media, err := p.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		media.Body.Close()
		return nil, mediaError(ReasonAborted, err)
	}
	src, format, err := decode(media)
	if err != nil {
		return nil, err
	}
	return &resource{src: src, format: format}, nil
}

// Play starts playback from Ready or Paused. From Error it reloads the source
// and plays once loaded. If the audio output is not open yet the player goes
// Blocked instead, with ReasonAutoplayBlocked.
func (p *Player) Play() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	logger := logger.Ctx("Play")

	switch p.status.State {
	case Idle:
		logger.Vol(util.Normal).Log(ErrSourceMissing)
		p.mu.Unlock()
		return
	case Loading, Playing:
		p.mu.Unlock()
		return
	case Error:
		logger.Vol(util.Normal).Log("reloading", p.status.Source)
		p.loadLocked(p.status.Source)
		p.playAfterLoad = true
		p.notifyUnlock()
		return
	}

	if !p.out.Ready() {
		p.blockLocked()
		p.notifyUnlock()
		return
	}
	if p.res.chain == nil {
		ch := p.res.attach(p.out.Format(), p.status.Volume, p.status.Muted, p.ended)
		if err := p.out.Play(ch.tap); err != nil {
			p.res.chain = nil
			p.blockLocked()
			p.notifyUnlock()
			return
		}
	}
	p.out.Lock()
	p.res.chain.ctrl.Paused = false
	p.out.Unlock()

	p.status.State = Playing
	p.status.Err = nil
	p.startTickerLocked()
	p.notifyUnlock()
}

func (p *Player) blockLocked() {
	me := &MediaError{Reason: ReasonAutoplayBlocked, Raw: "audio output not initialised"}
	logger.Ctx("Play").Vol(util.Normal).Log(me)
	p.status.State = Blocked
	p.status.Err = me
}

// Pause only acts while playing
func (p *Player) Pause() {
	p.mu.Lock()
	if p.status.State != Playing {
		p.mu.Unlock()
		return
	}
	p.out.Lock()
	p.res.chain.ctrl.Paused = true
	p.out.Unlock()
	p.stopTickerLocked()
	p.status.State = Paused
	p.notifyUnlock()
}

// Seek moves the playhead, clamped to [0, duration]. It does nothing until the
// duration is known.
func (p *Player) Seek(to time.Duration) {
	p.mu.Lock()
	if p.res == nil || p.status.Duration <= 0 {
		p.mu.Unlock()
		return
	}
	to = util.Max(0, util.Min(to, p.status.Duration))
	frame := util.ClampInt(p.res.format.SampleRate.N(to), 0, p.res.src.Len())

	p.out.Lock()
	err := p.res.src.Seek(frame)
	if err == nil && p.res.chain != nil {
		p.res.chain.refeed(p.res)
	}
	p.out.Unlock()
	if err != nil {
		logger.Ctx("Seek").Vol(util.Loud).Log(err)
	}
	p.notifyUnlock()
}

// SetVolume sets the level in [0, 1]. It does not unmute.
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	p.status.Volume = util.ClampFloat(v, 0, 1)
	p.applyVolumeLocked()
	p.notifyUnlock()
}

// ToggleMute silences the output without touching the volume, so unmuting
// restores it exactly
func (p *Player) ToggleMute() {
	p.mu.Lock()
	p.status.Muted = !p.status.Muted
	p.applyVolumeLocked()
	p.notifyUnlock()
}

func (p *Player) applyVolumeLocked() {
	if p.res == nil || p.res.chain == nil {
		return
	}
	p.out.Lock()
	p.res.chain.setVolume(p.status.Volume, p.status.Muted)
	p.out.Unlock()
}

// Close releases the source and waits for the player's goroutines. The
// player is unusable afterwards.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.gen++
	p.releaseLocked()
	p.status.State = Idle
	p.mu.Unlock()

	p.wg.Wait()
	logger.Ctx("Close").Vol(util.Normal).Log("closed")
}

// releaseLocked cancels any load in flight and takes the current resource
// off the output
func (p *Player) releaseLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.stopTickerLocked()
	if p.res != nil {
		p.out.Lock()
		p.res.detach()
		p.out.Unlock()
		p.res.close()
		p.res = nil
	}
}

// ended is called on the audio goroutine, with the output locked, when a
// chain has played to the end. A live chain is detached by Close before it
// waits, so the Add here always precedes the Wait.
func (p *Player) ended(ch *chain) {
	p.wg.Add(1)
	go p.finish(ch)
}

func (p *Player) finish(ch *chain) {
	defer p.wg.Done()
	p.mu.Lock()
	if p.res == nil || p.res.chain != ch {
		p.mu.Unlock()
		return
	}
	p.stopTickerLocked()
	p.res.chain = nil
	p.out.Lock()
	if err := p.res.src.Seek(0); err != nil {
		logger.Ctx("finish").Vol(util.Loud).Log(err)
	}
	p.out.Unlock()
	p.status.State = Ready
	logger.Ctx("finish").Vol(util.Normal).Log("reached the end of", p.status.Source)
	p.notifyUnlock()
}

func (p *Player) startTickerLocked() {
	if p.stopTicker != nil || p.tick <= 0 {
		return
	}
	stop := make(chan struct{})
	p.stopTicker = stop
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(p.tick)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				p.mu.Lock()
				if p.stopTicker != stop {
					p.mu.Unlock()
					return
				}
				p.notifyUnlock()
			}
		}
	}()
}

func (p *Player) stopTickerLocked() {
	if p.stopTicker != nil {
		close(p.stopTicker)
		p.stopTicker = nil
	}
}

func (p *Player) snapshotLocked() Status {
	s := p.status
	if p.res != nil {
		p.out.Lock()
		if ch := p.res.chain; ch != nil {
			s.Position = ch.position()
			s.Peak = ch.tap.Peak()
		} else {
			s.Position = p.res.format.SampleRate.D(p.res.src.Position())
		}
		p.out.Unlock()
		if s.Duration > 0 {
			s.Position = util.Min(s.Position, s.Duration)
		}
	}
	return s
}

// notifyUnlock snapshots the status, releases the lock and reports the
// snapshot
func (p *Player) notifyUnlock() {
	s := p.snapshotLocked()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// resource is one decoded source. At most one is alive per player.
type resource struct {
	src    beep.StreamSeekCloser
	format beep.Format
	chain  *chain
}

func (r *resource) duration() time.Duration {
	if n := r.src.Len(); n > 0 {
		return r.format.SampleRate.D(n)
	}
	return 0
}

// chain is what goes on the output: the source resampled to the output rate,
// behind a pause switch, through the volume, into a level tap
type chain struct {
	ctrl   *beep.Ctrl
	volume *effects.Volume
	tap    *streams.Tap
	// detached is only touched with the output locked
	detached bool

	// played counts output frames taken from the source since it was at
	// frame `from`. The resampler reads ahead of what it hands out, so the
	// decoder position runs early while resampling.
	played *streams.Tap
	from   int
	format beep.Format
	out    beep.SampleRate
}

func (r *resource) attach(out beep.Format, volume float64, muted bool, onEnd func(*chain)) *chain {
	ch := &chain{ctrl: &beep.Ctrl{Paused: true}, format: r.format, out: out.SampleRate}
	ch.refeed(r)

	ch.volume = &effects.Volume{Streamer: ch.ctrl, Base: 2}
	ch.setVolume(volume, muted)
	ch.tap = streams.NewTap(beep.Seq(ch.volume, beep.Callback(func() {
		if !ch.detached {
			onEnd(ch)
		}
	})))

	r.chain = ch
	return ch
}

// refeed restarts the chain from the source's current frame, dropping
// whatever the old resampler had buffered. The output must be locked.
func (ch *chain) refeed(r *resource) {
	var s beep.Streamer = r.src
	if ch.format.SampleRate != ch.out {
		s = beep.Resample(4, ch.format.SampleRate, ch.out, s)
	}
	ch.from = r.src.Position()
	ch.played = streams.NewTap(s)
	ch.ctrl.Streamer = ch.played
}

// position is the playhead as heard. The output must be locked.
func (ch *chain) position() time.Duration {
	return ch.format.SampleRate.D(ch.from) + ch.out.D(int(ch.played.Frames()))
}

// detach empties the chain so the output drops it on its next pull. The
// output must be locked.
func (r *resource) detach() {
	if r.chain == nil {
		return
	}
	r.chain.detached = true
	r.chain.ctrl.Streamer = nil
	r.chain = nil
}

func (r *resource) close() {
	if err := r.src.Close(); err != nil {
		logger.Ctx("close").Vol(util.Quiet).Log(err)
	}
}

// setVolume maps a linear level onto the exponential volume effect
func (ch *chain) setVolume(v float64, muted bool) {
	ch.volume.Silent = muted || v <= 0
	if v > 0 {
		ch.volume.Volume = math.Log2(v)
	}
}
