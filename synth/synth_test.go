package synth

import (
	"math"
	"testing"
	"time"

	"beataddicts/studio/engine"

	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

const sampleRate = 44100

func peak(signal []float64) float64 {
	p := 0.0
	for _, s := range signal {
		p = math.Max(p, math.Abs(s))
	}
	return p
}

func TestExpRamp(t *testing.T) {
	r := Decay(0.8, 100)
	if r.At(0) != 0.8 {
		t.Fatalf("At(0) = %v, want 0.8", r.At(0))
	}
	if r.At(100) != EnvelopeFloor || r.At(1000) != EnvelopeFloor {
		t.Fatalf("ramp does not settle on the floor: %v %v", r.At(100), r.At(1000))
	}
	for i := 1; i <= 100; i++ {
		if r.At(i) >= r.At(i-1) {
			t.Fatalf("ramp not decreasing at %d: %v >= %v", i, r.At(i), r.At(i-1))
		}
	}
	if got, want := r.At(50), math.Sqrt(0.8*EnvelopeFloor); math.Abs(got-want) > 1e-12 {
		t.Fatalf("midpoint = %v, want geometric mean %v", got, want)
	}

	// zero is not a valid end point for an exponential ramp
	if got := (ExpRamp{From: 1, To: 0, Length: 10}).At(10); got != EnvelopeFloor {
		t.Fatalf("ramp to zero ends at %v, want %v", got, EnvelopeFloor)
	}
}

func TestRenderLengths(t *testing.T) {
	cases := []struct {
		voice Voice
		want  int
	}{
		{Kick, 13230},
		{Snare, 6615},
		{HiHat, 2205},
		{OpenHat, 8820},
	}
	for _, c := range cases {
		t.Run(string(c.voice.Type), func(t *testing.T) {
			out, err := Render(c.voice, sampleRate, 1)
			if err != nil {
				t.Fatal(err)
			}
			if len(out) != c.want {
				t.Fatalf("len = %d, want %d", len(out), c.want)
			}
			// every voice decays to near silence by its end
			if tail := peak(out[len(out)-len(out)/20:]); tail > 0.05 {
				t.Fatalf("tail peak = %v, want a decayed signal", tail)
			}
		})
	}
}

func TestKickEnvelope(t *testing.T) {
	out, err := Render(Kick, sampleRate, 0)
	if err != nil {
		t.Fatal(err)
	}
	head := peak(out[:sampleRate/50])
	if head > Kick.Peak || head < 0.5 {
		t.Fatalf("peak of first 20ms = %v, want close to %v", head, Kick.Peak)
	}

	pitch := ExpRamp{From: 60, To: 18, Length: sampleRate / 10}
	if pitch.At(0) != 60 || pitch.At(sampleRate) != 18 {
		t.Fatalf("pitch ramp = %v..%v, want 60..18", pitch.At(0), pitch.At(sampleRate))
	}
}

func TestNoiseVoicesAreSeeded(t *testing.T) {
	a, _ := Render(Snare, sampleRate, 7)
	b, _ := Render(Snare, sampleRate, 7)
	c, _ := Render(Snare, sampleRate, 8)
	same, differ := true, false
	for i := range a {
		same = same && a[i] == b[i]
		differ = differ || a[i] != c[i]
	}
	if !same {
		t.Fatal("equal seeds rendered different snares")
	}
	if !differ {
		t.Fatal("different seeds rendered identical snares")
	}
}

func TestHatFilters(t *testing.T) {
	hp := design.Highpass(HiHat.BaseFreq, q(HiHat), sampleRate)
	if db := hp.MagnitudeDB(200, sampleRate); db > -40 {
		t.Fatalf("closed hat filter passes 200Hz at %v dB", db)
	}

	bp := unityBandpass(OpenHat.BaseFreq, OpenHat.Q, sampleRate)
	if db := bp.MagnitudeDB(OpenHat.BaseFreq, sampleRate); math.Abs(db) > 0.1 {
		t.Fatalf("open hat filter centre gain = %v dB, want 0", db)
	}
	if db := bp.MagnitudeDB(1000, sampleRate); db > -10 {
		t.Fatalf("open hat filter passes 1kHz at %v dB", db)
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	if _, err := Render(Voice{Type: "cowbell", Duration: time.Second}, sampleRate, 0); err == nil {
		t.Fatal("unknown voice rendered")
	}
	if _, err := Render(Kick, 0, 0); err == nil {
		t.Fatal("zero sample rate rendered")
	}
}

func TestTriggerWaitsForEngine(t *testing.T) {
	e := engine.NewOffline(engine.DefaultFormat)
	s := New(e)

	s.Trigger("kick", 0)
	if e.Active() != 0 {
		t.Fatal("hit scheduled before the engine was ready")
	}

	if err := e.EnsureReady(); err != nil {
		t.Fatal(err)
	}
	s.Trigger("cowbell", 0)
	if e.Active() != 0 {
		t.Fatal("unknown voice scheduled a hit")
	}

	s.Trigger("kick", 10*time.Millisecond)
	if e.Active() != 1 {
		t.Fatalf("bus has %d streamers, want 1", e.Active())
	}
	out := e.Render(sampleRate / 100)
	for i, f := range out {
		if f != [2]float64{} {
			t.Fatalf("frame %d = %v inside the trigger offset", i, f)
		}
	}
	if p := framesPeak(e.Render(sampleRate / 50)); p < 0.5 {
		t.Fatalf("kick peak after offset = %v", p)
	}
}

func TestGain(t *testing.T) {
	e := engine.NewOffline(engine.DefaultFormat)
	s := New(e)
	s.SetGain("hihat", 3)
	if s.Gain("hihat") != 1 {
		t.Fatalf("gain = %v, want clamped to 1", s.Gain("hihat"))
	}
	s.SetGain("hihat", 0)
	hit, err := s.Hit(HiHat, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p := framesPeak(drain(hit.Streamer(0, hit.Len()))); p != 0 {
		t.Fatalf("muted voice peak = %v", p)
	}
}

func framesPeak(frames [][2]float64) float64 {
	p := 0.0
	for _, f := range frames {
		p = math.Max(p, math.Max(math.Abs(f[0]), math.Abs(f[1])))
	}
	return p
}

func drain(s interface {
	Stream([][2]float64) (int, bool)
}) [][2]float64 {
	var out [][2]float64
	buf := make([][2]float64, 512)
	for {
		n, ok := s.Stream(buf)
		out = append(out, buf[:n]...)
		if !ok {
			return out
		}
	}
}
