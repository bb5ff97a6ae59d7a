package util

import (
	"fmt"
	"io"
	"log"
	"math"
)

type number interface {
	~int | ~int64 | ~float64
}

func Min[T number](a, b T) T {
	if a > b {
		return b
	}
	return a
}

func Max[T number](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// ClampInt limits v to [lo, hi]
func ClampInt(v, lo, hi int) int { return Max(lo, Min(v, hi)) }

// ClampFloat limits v to [lo, hi]. NaN collapses onto lo so that a bad value
// can never leak into the real-time path.
func ClampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return Max(lo, Min(v, hi))
}

func Map[T, U any](mapFunc func(T) U, s []T) (out []U) {
	for _, t := range s {
		out = append(out, mapFunc(t))
	}

	return out
}

type LogVolume int

const (
	Silent LogVolume = 1 << iota
	Quieter
	Quiet
	Normal
	Loud
	Louder
	Loudest
)

func (lv LogVolume) String() string {
	switch lv {
	case Silent:
		return "Silent"
	case Quieter:
		return "Quieter"
	case Quiet:
		return "Quiet"
	case Normal:
		return "Normal"
	case Loud:
		return "Loud"
	case Louder:
		return "Louder"
	case Loudest:
		return "Loudest"
	default:
		return fmt.Sprintf("%d", lv)
	}
}

// initialise the log level as Loud by default, so only swallowed failures show
var filterBelow = func(lv LogVolume) *LogVolume { return &lv }(Loud)

// FilterBelow sets the log level below which messages will not be printed
func (lv LogVolume) FilterBelow() LogVolume {
	*filterBelow = lv
	return lv
}

// SetOutput redirects every Logger, e.g. to a file while a TUI owns the terminal
func SetOutput(w io.Writer) { log.SetOutput(w) }

// Logger is a context-aware logger
type Logger struct {
	prefixes []any
	Volume   LogVolume
}

// Ctx returns a copy of the logger with the given prefix added after all pre-existing prefixes
func (l Logger) Ctx(prefix string) Logger {
	prefixes := make([]any, len(l.prefixes), len(l.prefixes)+1)
	copy(prefixes, l.prefixes)
	return Logger{append(prefixes, prefix+":"), l.Volume}
}

// Vol is like a -v option. A Loud logger will print all messages,
// a Silent one will print none
func (l Logger) Vol(v LogVolume) Logger {
	l.Volume = v
	return l
}

// Log shares its interface with log.Println
func (l Logger) Log(msgs ...any) {
	if l.Volume >= *filterBelow {
		prefixes := append([]any{fmt.Sprintf("[%s]", l.Volume)}, l.prefixes...)
		log.Println(append(prefixes, msgs...)...)
	}
}

// Logf is Log with a format string
func (l Logger) Logf(format string, args ...any) {
	l.Log(fmt.Sprintf(format, args...))
}
