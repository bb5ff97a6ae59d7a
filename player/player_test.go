package player

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"beataddicts/studio/engine"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

var testFormat = beep.Format{SampleRate: 8000, NumChannels: 2, Precision: 2}

// wavBytes encodes `d` of a constant level at the given rate
func wavBytes(t *testing.T, rate beep.SampleRate, d time.Duration, level float64) []byte {
	t.Helper()
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	n := rate.N(d)
	s := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if n <= 0 {
			return 0, false
		}
		m := min(n, len(samples))
		for i := range samples[:m] {
			samples[i] = [2]float64{level, level}
		}
		n -= m
		return m, true
	})

	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := wav.Encode(f, s, format); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// decodedLevel is the level the fixture actually plays at. beep's wav
// decoder scales 16-bit samples by 1/(2^16-1), so a fixture encoded at 0.5
// comes back at about 0.25.
func decodedLevel(t *testing.T, data []byte) float64 {
	t.Helper()
	s, _, err := wav.Decode(memBody{bytes.NewReader(data)})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	frame := make([][2]float64, 1)
	if n, _ := s.Stream(frame); n != 1 {
		t.Fatal("empty fixture")
	}
	return frame[0][0]
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-3 }

type memSource struct {
	data        []byte
	contentType string
	err         error
}

// memFetcher serves sources from memory. A gated source does not complete
// until its gate is closed, whatever the context says.
type memFetcher struct {
	mu      sync.Mutex
	sources map[string]memSource
	gates   map[string]chan struct{}
	fetched chan string
}

func newMemFetcher() *memFetcher {
	return &memFetcher{
		sources: map[string]memSource{},
		gates:   map[string]chan struct{}{},
		fetched: make(chan string, 16),
	}
}

func (f *memFetcher) set(source string, s memSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[source] = s
}

func (f *memFetcher) gate(source string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[source] = g
	return g
}

func (f *memFetcher) Fetch(ctx context.Context, source string) (*Media, error) {
	f.mu.Lock()
	gate := f.gates[source]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	defer func() {
		select {
		case f.fetched <- source:
		default:
		}
	}()

	f.mu.Lock()
	s, ok := f.sources[source]
	f.mu.Unlock()
	if !ok {
		return nil, mediaError(ReasonNetwork, os.ErrNotExist)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &Media{Body: memBody{bytes.NewReader(s.data)}, ContentType: s.contentType, Name: source}, nil
}

type recorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func newTestPlayer(t *testing.T, ready bool) (*Player, *memFetcher, *engine.Engine) {
	t.Helper()
	eng := engine.NewOffline(testFormat)
	if ready {
		if err := eng.EnsureReady(); err != nil {
			t.Fatal(err)
		}
	}
	f := newMemFetcher()
	p := New(eng, WithFetcher(f), WithTick(time.Millisecond))
	t.Cleanup(p.Close)
	return p, f, eng
}

func waitFor(t *testing.T, p *Player, what string, ok func(Status) bool) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := p.Status()
		if ok(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, status %+v", what, s)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitState(t *testing.T, p *Player, state State) Status {
	t.Helper()
	return waitFor(t, p, state.String(), func(s Status) bool { return s.State == state })
}

func TestLoad(t *testing.T) {
	p, f, _ := newTestPlayer(t, true)
	f.set("beat.wav", memSource{data: wavBytes(t, 8000, time.Second, 0.5)})

	p.Load("beat.wav")
	if st := p.Status().State; st != Loading && st != Ready {
		t.Fatalf("state after Load = %v", st)
	}
	s := waitState(t, p, Ready)
	if s.Duration != time.Second || s.Position != 0 || s.Source != "beat.wav" || s.Err != nil {
		t.Fatalf("status %+v", s)
	}
}

func TestLoadEmptySource(t *testing.T) {
	p, _, _ := newTestPlayer(t, true)
	p.Load("")
	p.Play()
	if s := p.Status(); s.State != Idle {
		t.Fatalf("state %v, want idle", s.State)
	}
}

func TestLastLoadWins(t *testing.T) {
	p, f, _ := newTestPlayer(t, true)
	rec := &recorder{}
	p.OnChange(rec.record)

	f.set("url1", memSource{data: wavBytes(t, 8000, time.Second, 0.5)})
	f.set("url2", memSource{data: wavBytes(t, 8000, 2*time.Second, 0.5)})
	gate := f.gate("url1")

	p.Load("url1")
	p.Load("url2")
	waitFor(t, p, "url2 ready", func(s Status) bool { return s.Source == "url2" && s.State == Ready })

	close(gate)
	for src := range f.fetched {
		if src == "url1" {
			break
		}
	}
	// Close waits for the stale load to be dealt with
	p.Close()

	statuses := rec.all()
	last := statuses[len(statuses)-1]
	if last.Source != "url2" || last.State != Ready || last.Duration != 2*time.Second {
		t.Fatalf("last status %+v, want url2 ready", last)
	}
	for _, s := range statuses {
		if s.Source == "url1" && s.State == Ready {
			t.Fatalf("stale load reported %+v", s)
		}
	}
}

func TestErrorsAndRetry(t *testing.T) {
	p, f, _ := newTestPlayer(t, true)
	cases := []struct {
		source string
		src    memSource
		want   Reason
	}{
		{"missing.wav", memSource{err: mediaError(ReasonNetwork, os.ErrNotExist)}, ReasonNetwork},
		{"page", memSource{data: []byte("<html></html>"), contentType: "text/html"}, ReasonDecode},
		{"song", memSource{data: []byte("....."), contentType: "audio/aac"}, ReasonUnsupported},
		{"broken.wav", memSource{data: []byte("RIFF but not really")}, ReasonDecode},
		{"cancelled", memSource{err: context.Canceled}, ReasonAborted},
	}
	for _, c := range cases {
		t.Run(c.source, func(t *testing.T) {
			f.set(c.source, c.src)
			p.Load(c.source)
			s := waitState(t, p, Error)
			if s.Err == nil || s.Err.Reason != c.want {
				t.Fatalf("error %v, want %v", s.Err, c.want)
			}
			if s.Err.Message() != c.want.Message() || s.Err.Raw == "" {
				t.Fatalf("message %q raw %q", s.Err.Message(), s.Err.Raw)
			}

			gate := f.gate(c.source)
			p.Retry()
			if st := p.Status().State; st != Loading {
				t.Fatalf("state after Retry = %v, want loading", st)
			}
			close(gate)
			waitState(t, p, Error)
		})
	}
}

func TestPlayFromErrorReloads(t *testing.T) {
	p, f, eng := newTestPlayer(t, true)
	p.Load("late.wav")
	waitState(t, p, Error)

	data := wavBytes(t, 8000, time.Second, 0.5)
	f.set("late.wav", memSource{data: data})
	p.Play()
	waitState(t, p, Playing)

	level := decodedLevel(t, data)
	if frames := eng.Render(64); level == 0 || !near(frames[10][0], level) {
		t.Fatalf("frame %v, want %v", frames[10], level)
	}
}

func TestAutoplayBlocked(t *testing.T) {
	p, f, eng := newTestPlayer(t, false)
	f.set("beat.wav", memSource{data: wavBytes(t, 8000, time.Second, 0.5)})
	p.Load("beat.wav")
	waitState(t, p, Ready)

	p.Play()
	s := p.Status()
	if s.State != Blocked || s.Err == nil || s.Err.Reason != ReasonAutoplayBlocked {
		t.Fatalf("status %+v, want blocked", s)
	}

	if err := eng.EnsureReady(); err != nil {
		t.Fatal(err)
	}
	p.Play()
	if s := p.Status(); s.State != Playing || s.Err != nil {
		t.Fatalf("status %+v, want playing", s)
	}
}

func TestPlayPause(t *testing.T) {
	p, f, eng := newTestPlayer(t, true)
	data := wavBytes(t, 8000, time.Second, 0.5)
	level := decodedLevel(t, data)
	f.set("beat.wav", memSource{data: data})
	p.Load("beat.wav")
	waitState(t, p, Ready)

	p.Pause()
	if p.Status().State != Ready {
		t.Fatal("pause before play changed the state")
	}

	p.Play()
	frames := eng.Render(100)
	if !near(frames[50][0], level) || !near(frames[50][1], level) {
		t.Fatalf("frame %v, want %v", frames[50], level)
	}
	if s := p.Status(); !near(s.Peak, level) {
		t.Fatalf("peak %v, want %v", s.Peak, level)
	}

	p.Pause()
	s := p.Status()
	if s.State != Paused {
		t.Fatalf("state %v, want paused", s.State)
	}
	for i, frame := range eng.Render(100) {
		if frame != [2]float64{} {
			t.Fatalf("paused frame %d = %v", i, frame)
		}
	}
	if after := p.Status().Position; after != s.Position || after < testFormat.SampleRate.D(100) {
		t.Fatalf("paused position %v, was %v", after, s.Position)
	}
}

func TestVolumeAndMute(t *testing.T) {
	p, f, eng := newTestPlayer(t, true)
	f.set("beat.wav", memSource{data: wavBytes(t, 8000, time.Second, 0.5)})
	p.Load("beat.wav")
	waitState(t, p, Ready)
	p.Play()
	full := eng.Render(10)[5][0]

	p.SetVolume(0.5)
	p.ToggleMute()
	if s := p.Status(); !s.Muted || s.Volume != 0.5 {
		t.Fatalf("muted status %+v", s)
	}
	if frame := eng.Render(10)[5]; frame != [2]float64{} {
		t.Fatalf("muted frame %v", frame)
	}

	p.ToggleMute()
	if s := p.Status(); s.Muted || s.Volume != 0.5 {
		t.Fatalf("unmuted status %+v, want volume 0.5", s)
	}
	if frame := eng.Render(10)[5]; full == 0 || !near(frame[0], full/2) {
		t.Fatalf("half volume frame %v, want %v", frame, full/2)
	}

	for in, want := range map[float64]float64{2: 1, -1: 0, math.NaN(): 0} {
		p.SetVolume(in)
		if got := p.Status().Volume; got != want {
			t.Fatalf("SetVolume(%v) gave %v, want %v", in, got, want)
		}
	}
}

func TestSeekClamps(t *testing.T) {
	p, f, _ := newTestPlayer(t, true)
	p.Seek(time.Second)
	if p.Status().Position != 0 {
		t.Fatal("seek without a source moved")
	}

	f.set("beat.wav", memSource{data: wavBytes(t, 8000, time.Second, 0.5)})
	p.Load("beat.wav")
	s := waitState(t, p, Ready)

	p.Seek(-5 * time.Second)
	if got := p.Status().Position; got != 0 {
		t.Fatalf("seek(-5s) gave %v", got)
	}
	p.Seek(s.Duration + 100*time.Second)
	if got := p.Status().Position; got != s.Duration {
		t.Fatalf("seek past the end gave %v, want %v", got, s.Duration)
	}
	p.Seek(250 * time.Millisecond)
	if got := p.Status().Position; got != 250*time.Millisecond {
		t.Fatalf("seek(250ms) gave %v", got)
	}
}

func TestPlaysToTheEnd(t *testing.T) {
	p, f, eng := newTestPlayer(t, true)
	f.set("short.wav", memSource{data: wavBytes(t, 8000, 100*time.Millisecond, 0.5)})
	p.Load("short.wav")
	waitState(t, p, Ready)

	p.Play()
	eng.Render(2000)
	s := waitState(t, p, Ready)
	if s.Position != 0 {
		t.Fatalf("position after the end %v, want 0", s.Position)
	}
	if eng.Active() != 0 {
		t.Fatalf("%d streamers left on the bus", eng.Active())
	}

	p.Play()
	if p.Status().State != Playing {
		t.Fatal("could not play again after the end")
	}
}

func TestResamplesToOutputRate(t *testing.T) {
	p, f, eng := newTestPlayer(t, true)
	f.set("low.wav", memSource{data: wavBytes(t, 4000, time.Second, 0.5)})
	p.Load("low.wav")
	if s := waitState(t, p, Ready); s.Duration != time.Second {
		t.Fatalf("duration %v", s.Duration)
	}
	p.Play()
	eng.Render(800)
	if pos := p.Status().Position; pos != 100*time.Millisecond {
		t.Fatalf("position %v after 100ms of output", pos)
	}

	p.Seek(500 * time.Millisecond)
	if pos := p.Status().Position; pos != 500*time.Millisecond {
		t.Fatalf("position %v right after seeking to 500ms", pos)
	}
	eng.Render(80)
	if pos := p.Status().Position; pos != 510*time.Millisecond {
		t.Fatalf("position %v after 10ms from 500ms", pos)
	}

	p.Pause()
	eng.Render(800)
	if pos := p.Status().Position; pos != 510*time.Millisecond {
		t.Fatalf("position moved to %v while paused", pos)
	}
}

func TestReplaceReleasesPrevious(t *testing.T) {
	p, f, eng := newTestPlayer(t, true)
	b := wavBytes(t, 8000, time.Second, 0.25)
	f.set("a.wav", memSource{data: wavBytes(t, 8000, time.Second, 0.5)})
	f.set("b.wav", memSource{data: b})
	p.Load("a.wav")
	waitState(t, p, Ready)
	p.Play()
	eng.Render(10)

	p.Load("b.wav")
	eng.Render(10)
	if eng.Active() != 0 {
		t.Fatalf("%d streamers on the bus after replacing the source", eng.Active())
	}
	waitState(t, p, Ready)
	p.Play()
	if frame, want := eng.Render(10)[5], decodedLevel(t, b); !near(frame[0], want) {
		t.Fatalf("frame %v, want only the new source at %v", frame, want)
	}
}

func TestClose(t *testing.T) {
	p, f, eng := newTestPlayer(t, true)
	f.set("beat.wav", memSource{data: wavBytes(t, 8000, time.Second, 0.5)})
	p.Load("beat.wav")
	waitState(t, p, Ready)
	p.Play()

	p.Close()
	for i, frame := range eng.Render(10) {
		if frame != [2]float64{} {
			t.Fatalf("frame %d = %v after close", i, frame)
		}
	}
	p.Load("beat.wav")
	p.Play()
	if s := p.Status(); s.State != Idle {
		t.Fatalf("state %v after close", s.State)
	}
}

func TestNoUpdatesAfterPause(t *testing.T) {
	p, f, eng := newTestPlayer(t, true)
	rec := &recorder{}
	p.OnChange(rec.record)
	f.set("beat.wav", memSource{data: wavBytes(t, 8000, time.Second, 0.5)})
	p.Load("beat.wav")
	waitState(t, p, Ready)

	const rounds = 20
	for i := 0; i < rounds; i++ {
		p.Play()
		eng.Render(8)
		time.Sleep(time.Millisecond)
		p.Pause()
	}
	time.Sleep(5 * time.Millisecond)

	// a tick racing the pause would report the paused state a second time
	paused := 0
	for _, s := range rec.all() {
		if s.State == Paused {
			paused++
		}
	}
	if paused != rounds {
		t.Fatalf("%d paused updates for %d pauses", paused, rounds)
	}
}

func TestCloseWaitsForTheEnd(t *testing.T) {
	p, f, eng := newTestPlayer(t, true)
	rec := &recorder{}
	p.OnChange(rec.record)
	f.set("short.wav", memSource{data: wavBytes(t, 8000, 10*time.Millisecond, 0.5)})
	p.Load("short.wav")
	waitState(t, p, Ready)

	p.Play()
	eng.Render(200)
	p.Close()
	n := len(rec.all())
	time.Sleep(5 * time.Millisecond)
	if got := len(rec.all()); got != n {
		t.Fatalf("%d updates after Close returned", got-n)
	}
}
