package synth

import (
	"sort"
	"time"
)

// VoiceType names a drum sound; it doubles as the pattern's voice key
type VoiceType string

const (
	KickVoice    VoiceType = "kick"
	SnareVoice   VoiceType = "snare"
	HiHatVoice   VoiceType = "hihat"
	OpenHatVoice VoiceType = "openhat"
)

// Voice is the recipe for one drum sound. Recipes are immutable; every hit
// renders new sample data from them.
type Voice struct {
	Type VoiceType

	// BaseFreq is the oscillator pitch for kick and snare, the filter
	// frequency for the hats
	BaseFreq float64
	Duration time.Duration
	Peak     float64

	// NoiseLevel scales the snare's noise layer
	NoiseLevel float64
	// Q is the hat filter resonance
	Q float64
}

var (
	Kick = Voice{
		Type:     KickVoice,
		BaseFreq: 60,
		Duration: 300 * time.Millisecond,
		Peak:     0.8,
	}
	Snare = Voice{
		Type:       SnareVoice,
		BaseFreq:   200,
		Duration:   150 * time.Millisecond,
		Peak:       0.7,
		NoiseLevel: 0.5,
	}
	HiHat = Voice{
		Type:     HiHatVoice,
		BaseFreq: 8000,
		Duration: 50 * time.Millisecond,
		Peak:     0.4,
		Q:        butterworthQ,
	}
	OpenHat = Voice{
		Type:     OpenHatVoice,
		BaseFreq: 8000,
		Duration: 200 * time.Millisecond,
		Peak:     0.5,
		Q:        5,
	}
)

var builtin = map[VoiceType]Voice{
	KickVoice:    Kick,
	SnareVoice:   Snare,
	HiHatVoice:   HiHat,
	OpenHatVoice: OpenHat,
}

// Lookup finds the built-in recipe for a voice name
func Lookup(name string) (Voice, bool) {
	v, ok := builtin[VoiceType(name)]
	return v, ok
}

// Voices lists the built-in voice names in sorted order
func Voices() []string {
	names := make([]string, 0, len(builtin))
	for t := range builtin {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}
