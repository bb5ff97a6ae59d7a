// Package config reads the command line and environment
package config

import (
	"strings"
	"time"

	"beataddicts/studio/engine"
	"beataddicts/studio/timing"
	"beataddicts/studio/util"

	"github.com/alexflint/go-arg"
	"github.com/faiface/beep"
	"github.com/pkg/errors"
)

const (
	MinSampleRate = 8000
	MaxSampleRate = 192000

	MinBuffer = 10 * time.Millisecond
	MaxBuffer = time.Second

	MaxBars = 64
)

// PatternCmd plays a pattern without a UI, or bounces it to a wav file
type PatternCmd struct {
	Grid string `arg:"positional" help:"pattern in grid notation, e.g. 'kick=x...x...x...x...;snare=....x.......x...' (default: the built-in groove)"`
	Bars int    `arg:"-b,--bars" default:"4" help:"number of bars to play"`
	Out  string `arg:"-o,--out" help:"write the bars to this wav file instead of playing them"`
}

// StreamCmd plays a single audio file or URL
type StreamCmd struct {
	Source string        `arg:"positional,required" help:"audio file path or http(s) URL"`
	Start  time.Duration `arg:"--start" help:"seek here before playing"`
}

// StudioCmd runs the terminal UI
type StudioCmd struct {
	Grid    string `arg:"--pattern" help:"starting pattern in grid notation"`
	Source  string `arg:"--source" help:"audio file or URL for the player deck"`
	LogFile string `arg:"--log-file,env:BEATBOX_LOG_FILE" default:"beatbox.log" help:"where logs go while the UI owns the terminal"`
}

type Args struct {
	Tempo      float64            `arg:"-t,--tempo,env:BEATBOX_TEMPO" default:"120" help:"tempo in BPM, clamped to [60, 200]"`
	SampleRate int                `arg:"--sample-rate,env:BEATBOX_SAMPLE_RATE" default:"44100" help:"output sample rate"`
	Buffer     time.Duration      `arg:"--buffer,env:BEATBOX_BUFFER" default:"100ms" help:"output buffer length"`
	Volume     float64            `arg:"--volume,env:BEATBOX_VOLUME" default:"1" help:"player volume in [0, 1]"`
	Kit        string             `arg:"--kit,env:BEATBOX_KIT" help:"directory of <voice>.wav samples that replace the synth voices"`
	Gain       map[string]float64 `arg:"--gain" help:"synth voice levels in [0, 1], e.g. --gain kick=0.8 hihat=0.5"`
	LogLevel   string             `arg:"--log-level,env:BEATBOX_LOG_LEVEL" default:"loud" help:"quieter, quiet, normal, loud, louder or silent"`

	Pattern *PatternCmd `arg:"subcommand:pattern" help:"play a drum pattern"`
	Stream  *StreamCmd  `arg:"subcommand:stream" help:"play an audio file or URL"`
	Studio  *StudioCmd  `arg:"subcommand:studio" help:"open the studio (default)"`
}

func (Args) Description() string {
	return "beatbox: a drum machine and audio player for the terminal"
}

func (Args) Version() string { return "beatbox 0.3.0" }

func (Args) Epilogue() string {
	return "Audio starts on the first key press in the studio, or at once in the other commands."
}

// Default is the configuration when nothing is given
func Default() Args {
	return Args{
		Tempo:      float64(timing.DefaultTempo),
		SampleRate: int(engine.DefaultFormat.SampleRate),
		Buffer:     100 * time.Millisecond,
		Volume:     1,
		LogLevel:   "loud",
	}
}

// Parse reads argv (without the program name) and the BEATBOX_* environment.
// With no subcommand it selects the studio. The returned parser is for
// printing usage; it is nil when err is not a usage error.
func Parse(argv []string) (*Args, *arg.Parser, error) {
	args := &Args{}
	p, err := arg.NewParser(arg.Config{Program: "beatbox"}, args)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build parser")
	}
	if err := p.Parse(argv); err != nil {
		return nil, p, err
	}
	if args.Pattern == nil && args.Stream == nil && args.Studio == nil {
		args.Studio = &StudioCmd{LogFile: "beatbox.log"}
	}
	if _, err := ParseLogVolume(args.LogLevel); err != nil {
		return nil, p, err
	}
	args.Normalize()
	return args, p, nil
}

// Normalize clamps every setting into its usable range
func (a *Args) Normalize() {
	a.Tempo = float64(timing.Tempo(a.Tempo).Clamp())
	a.SampleRate = util.ClampInt(a.SampleRate, MinSampleRate, MaxSampleRate)
	a.Buffer = util.Max(MinBuffer, util.Min(a.Buffer, MaxBuffer))
	a.Volume = util.ClampFloat(a.Volume, 0, 1)
	for voice, g := range a.Gain {
		a.Gain[voice] = util.ClampFloat(g, 0, 1)
	}
	if a.Pattern != nil {
		a.Pattern.Bars = util.ClampInt(a.Pattern.Bars, 1, MaxBars)
	}
	if a.Stream != nil {
		a.Stream.Start = util.Max(a.Stream.Start, 0)
	}
}

// Format is the output format for the configured sample rate
func (a Args) Format() beep.Format {
	f := engine.DefaultFormat
	f.SampleRate = beep.SampleRate(a.SampleRate)
	return f
}

var logVolumes = map[string]util.LogVolume{
	"quieter": util.Quieter,
	"quiet":   util.Quiet,
	"normal":  util.Normal,
	"loud":    util.Loud,
	"louder":  util.Louder,
	"loudest": util.Loudest,
}

// ParseLogVolume maps a --log-level name onto a LogVolume. "silent" hides
// everything.
func ParseLogVolume(name string) (util.LogVolume, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "silent" {
		return util.Loudest + 1, nil
	}
	if lv, ok := logVolumes[name]; ok {
		return lv, nil
	}
	return 0, errors.Errorf("unknown log level %q", name)
}
