package timing

import (
	"math"
	"testing"
	"time"

	"github.com/faiface/beep"
)

func TestStepDurationMs(t *testing.T) {
	prev := math.Inf(1)
	for bpm := 60; bpm <= 200; bpm++ {
		got := StepDurationMs(float64(bpm))
		want := 15000 / float64(bpm)
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("StepDurationMs(%d) = %v, want %v", bpm, got, want)
		}
		if got >= prev {
			t.Fatalf("StepDurationMs(%d) = %v not below %v", bpm, got, prev)
		}
		prev = got
	}
}

func TestStepDurationInvalidTempo(t *testing.T) {
	for _, bpm := range []float64{0, -10, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got, want := StepDuration(bpm), 15*time.Second; got != want {
			t.Fatalf("StepDuration(%v) = %v, want %v", bpm, got, want)
		}
	}
}

func TestTempoClamp(t *testing.T) {
	cases := []struct {
		in, want Tempo
	}{
		{0, MinTempo},
		{12, MinTempo},
		{60, 60},
		{128, 128},
		{200, 200},
		{999, MaxTempo},
		{Tempo(math.NaN()), MinTempo},
	}
	for _, c := range cases {
		if got := c.in.Clamp(); got != c.want {
			t.Fatalf("Tempo(%v).Clamp() = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSixteenthMatchesStepDuration(t *testing.T) {
	if got, want := Tempo(120).Sixteenth(), 125*time.Millisecond; got != want {
		t.Fatalf("Sixteenth() = %v, want %v", got, want)
	}
}

func TestTimingQuantise(t *testing.T) {
	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	beat := Timing{}.From(120, format)
	if beat.Samples != 22050 {
		t.Fatalf("beat samples = %d, want 22050", beat.Samples)
	}

	step := beat.Quantise(Sixteenth)
	if step.Samples != 5512 || step.Duration != 125*time.Millisecond {
		t.Fatalf("sixteenth = %+v", step)
	}

	if got := beat.Quantise(0); got != beat {
		t.Fatalf("zero quantisation = %+v, want %+v", got, beat)
	}
}
