package sequencer

import (
	"math"
	"testing"

	"beataddicts/studio/streams"

	"github.com/faiface/beep"
)

var bounceFormat = beep.Format{SampleRate: 8000, NumChannels: 2, Precision: 2}

// clicks hands out a flat 1500 frame hit for every voice, long enough to ring
// into the following step at 120 BPM
type clicks struct{ calls map[string]int }

func (c clicks) Sound(voice string) streams.Stream {
	return func() *streams.FStreamer {
		c.calls[voice]++
		signal := make([]float64, 1500)
		for i := range signal {
			signal[i] = 0.25
		}
		buf := streams.Mono(bounceFormat, signal)
		return streams.F(bounceFormat, buf.Streamer(0, buf.Len()))
	}
}

func frames(buf *beep.Buffer) [][2]float64 {
	out := make([][2]float64, buf.Len())
	buf.Streamer(0, buf.Len()).Stream(out)
	return out
}

func TestBounce(t *testing.T) {
	sounds := clicks{calls: map[string]int{}}
	p := Pattern{"kick": StepsOf(0), "snare": StepsOf(0, 8)}
	out := Bounce(p, 120, 2, sounds, bounceFormat)

	// 120 BPM at 8kHz is 1000 frames a step
	if got, want := out.Len(), 2*StepsPerBar*1000; got != want {
		t.Fatalf("bounced %d frames, want %d", got, want)
	}
	if sounds.calls["kick"] != 2 || sounds.calls["snare"] != 4 {
		t.Fatalf("sound calls %v", sounds.calls)
	}

	f := frames(out)
	checks := map[int]float64{
		0:     0.5,
		1499:  0.5,
		1500:  0,
		8000:  0.25,
		9499:  0.25,
		9500:  0,
		16000: 0.5,
		31999: 0,
	}
	for i, want := range checks {
		if math.Abs(f[i][0]-want) > 1e-3 || math.Abs(f[i][1]-want) > 1e-3 {
			t.Fatalf("frame %d = %v, want %v", i, f[i], want)
		}
	}
}

func TestBounceEmptyPattern(t *testing.T) {
	out := Bounce(Pattern{}, 120, 1, clicks{calls: map[string]int{}}, bounceFormat)
	if out.Len() != StepsPerBar*1000 {
		t.Fatalf("bounced %d frames, want %d", out.Len(), StepsPerBar*1000)
	}
	for i, frame := range frames(out) {
		if frame != [2]float64{} {
			t.Fatalf("frame %d = %v, want silence", i, frame)
		}
	}
}
