package sequencer

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// StepsPerBar is a 4/4 bar in sixteenth notes
const StepsPerBar = 16

// Steps is the set of active steps of one voice, one bit per step
type Steps uint16

// StepsOf builds a set from step indices. Indices wrap onto the bar.
func StepsOf(steps ...int) Steps {
	var s Steps
	for _, step := range steps {
		s |= 1 << wrap(step)
	}
	return s
}

func (s Steps) Has(step int) bool { return s&(1<<wrap(step)) != 0 }

func (s Steps) Toggle(step int) Steps { return s ^ 1<<wrap(step) }

func (s Steps) Len() int { return bits.OnesCount16(uint16(s)) }

// List returns the active steps in ascending order
func (s Steps) List() []int {
	out := make([]int, 0, s.Len())
	for step := 0; step < StepsPerBar; step++ {
		if s.Has(step) {
			out = append(out, step)
		}
	}
	return out
}

// Grid renders the set as 16 characters, x for on and . for off
func (s Steps) Grid() string {
	var b strings.Builder
	for step := 0; step < StepsPerBar; step++ {
		if s.Has(step) {
			b.WriteByte('x')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// wrap maps any step index onto [0, StepsPerBar)
func wrap(step int) int {
	return ((step % StepsPerBar) + StepsPerBar) % StepsPerBar
}

// Pattern maps voice names onto their active steps
type Pattern map[string]Steps

// DefaultPattern is four on the floor with a backbeat and off-beat hats
func DefaultPattern() Pattern {
	return Pattern{
		"kick":    StepsOf(0, 4, 8, 12),
		"snare":   StepsOf(4, 12),
		"hihat":   StepsOf(2, 6, 10, 14),
		"openhat": 0,
	}
}

func (p Pattern) Clone() Pattern {
	out := make(Pattern, len(p))
	for voice, steps := range p {
		out[voice] = steps
	}
	return out
}

// Toggle flips one step of one voice. Toggling twice restores the pattern.
func (p Pattern) Toggle(voice string, step int) {
	p[voice] = p[voice].Toggle(step)
}

// Voices lists the voice names in sorted order
func (p Pattern) Voices() []string {
	voices := make([]string, 0, len(p))
	for voice := range p {
		voices = append(voices, voice)
	}
	sort.Strings(voices)
	return voices
}

// Active lists the voices that play on the given step, sorted
func (p Pattern) Active(step int) []string {
	var voices []string
	for _, voice := range p.Voices() {
		if p[voice].Has(step) {
			voices = append(voices, voice)
		}
	}
	return voices
}

// Equal reports whether both patterns have the same active steps. A voice
// with no steps is the same as a missing voice.
func (p Pattern) Equal(o Pattern) bool {
	for voice, steps := range p {
		if o[voice] != steps {
			return false
		}
	}
	for voice, steps := range o {
		if p[voice] != steps {
			return false
		}
	}
	return true
}

// Validate reports voice names that cannot be addressed
func (p Pattern) Validate() error {
	for voice := range p {
		if !validVoice(voice) {
			return errors.Errorf("invalid voice name %q", voice)
		}
	}
	return nil
}

// a voice name must survive a round trip through the grid notation
func validVoice(name string) bool {
	return strings.TrimSpace(name) == name && name != "" && !strings.ContainsAny(name, "=;\n")
}

// String is the grid notation read by ParsePattern, one voice per line
func (p Pattern) String() string {
	width := 0
	for voice := range p {
		width = max(width, len(voice))
	}
	lines := make([]string, 0, len(p))
	for _, voice := range p.Voices() {
		lines = append(lines, fmt.Sprintf("%-*s = %s", width, voice, p[voice].Grid()))
	}
	return strings.Join(lines, "\n")
}

// ParsePattern reads `voice=grid` entries separated by newlines or
// semicolons, where grid is up to 16 of x (on) and . or - (off), with
// optional spaces or | between groups.
func ParsePattern(s string) (Pattern, error) {
	p := Pattern{}
	entries := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '\n' })
	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		voice, grid, ok := strings.Cut(entry, "=")
		voice = strings.TrimSpace(voice)
		if !ok || voice == "" {
			return nil, errors.Errorf("pattern entry %q: want voice=grid", entry)
		}
		steps, err := parseGrid(grid)
		if err != nil {
			return nil, errors.Wrapf(err, "voice %s", voice)
		}
		p[voice] = steps
	}
	return p, p.Validate()
}

func parseGrid(grid string) (Steps, error) {
	var steps Steps
	step := 0
	for _, r := range grid {
		switch r {
		case ' ', '\t', '|':
			continue
		case 'x', 'X':
			if step < StepsPerBar {
				steps |= 1 << step
			}
		case '.', '-':
		default:
			return 0, errors.Errorf("unexpected %q in grid", r)
		}
		step++
	}
	if step > StepsPerBar {
		return 0, errors.Errorf("grid has %d steps, a bar has %d", step, StepsPerBar)
	}
	return steps, nil
}
