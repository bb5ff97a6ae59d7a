package sequencer

import (
	"beataddicts/studio/streams"
	"beataddicts/studio/timing"
	"beataddicts/studio/util"

	"github.com/faiface/beep"
)

// Sounder hands out a fresh hit of a voice on every call of the Stream
type Sounder interface {
	Sound(voice string) streams.Stream
}

// Bounce renders `bars` bars of the pattern offline. Each voice becomes a
// track of StepsPerBar chunks; the tracks are mixed step by step and laid on
// the sixteenth-note grid, so a hit that rings past its step carries on into
// the next ones.
func Bounce(p Pattern, tempo timing.Tempo, bars int, sounds Sounder, format beep.Format) *beep.Buffer {
	logger := logger.Ctx("Bounce").Vol(util.Normal)
	bars = util.Max(bars, 1)

	tracks := make([]streams.Track, 0, len(p))
	for _, voice := range p.Voices() {
		steps := make([]bool, 0, bars*StepsPerBar)
		for bar := 0; bar < bars; bar++ {
			for step := 0; step < StepsPerBar; step++ {
				steps = append(steps, p[voice].Has(step))
			}
		}
		tracks = append(tracks, streams.Track{Steps: steps, Sound: sounds.Sound(voice)})
	}
	logger.Log("bouncing", bars, "bars of", len(tracks), "tracks at", tempo.Clamp(), "BPM")

	// quantise the mixed tracks to the tempo & quantisation
	quantised := streams.Quantiser{
		Incoming:     streams.MixAll(format, tracks).Stream(),
		Tempo:        tempo.Clamp(),
		Quantisation: timing.Sixteenth,
		Format:       format,
	}.Stream()

	out := beep.NewBuffer(format)
	if len(tracks) == 0 {
		step := timing.Timing{}.From(tempo.Clamp(), format).Quantise(timing.Sixteenth)
		out.Append(beep.Silence(bars * StepsPerBar * step.Samples))
		return out
	}
	for chunk := quantised(); chunk != nil; chunk = quantised() {
		out.Append(chunk)
	}
	return out
}
