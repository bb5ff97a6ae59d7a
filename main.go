package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"beataddicts/studio/config"
	"beataddicts/studio/engine"
	"beataddicts/studio/player"
	"beataddicts/studio/samples"
	"beataddicts/studio/sequencer"
	"beataddicts/studio/synth"
	"beataddicts/studio/timing"
	"beataddicts/studio/tui"
	"beataddicts/studio/util"

	"github.com/alexflint/go-arg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
)

var logger = util.Logger{}.Ctx("main")

// how long the last hits of a headless pattern are given to ring out
const ringOut = 400 * time.Millisecond

func main() {
	args, parser, err := config.Parse(os.Args[1:])
	switch {
	case err == arg.ErrHelp:
		parser.WriteHelp(os.Stdout)
		return
	case err == arg.ErrVersion:
		fmt.Println(config.Args{}.Version())
		return
	case err != nil && parser != nil:
		parser.Fail(err.Error())
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lv, _ := config.ParseLogVolume(args.LogLevel)
	lv.FilterBelow()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case args.Pattern != nil:
		err = runPattern(ctx, args)
	case args.Stream != nil:
		err = runStream(ctx, args)
	default:
		err = runStudio(args)
	}
	if err != nil {
		logger.Vol(util.Loudest).Log(err)
		stop()
		os.Exit(1)
	}
}

// instrument is what plays the sequencer's voices: the synth, or a sample kit
// in front of it
type instrument interface {
	sequencer.Instrument
	sequencer.Sounder
}

func newInstrument(eng *engine.Engine, args *config.Args) (instrument, []string) {
	s := synth.New(eng)
	for voice, g := range args.Gain {
		s.SetGain(voice, g)
	}
	kitDir := args.Kit
	if kitDir == "" {
		return s, synth.Voices()
	}
	kit := samples.NewKit(eng, s)
	if err := kit.LoadDir(kitDir); err != nil {
		logger.Ctx("kit").Vol(util.Loud).Log(err)
	}
	return kit, union(synth.Voices(), kit.Voices())
}

func union(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}

func pattern(grid string) (sequencer.Pattern, error) {
	if grid == "" {
		return sequencer.DefaultPattern(), nil
	}
	p, err := sequencer.ParsePattern(grid)
	return p, errors.Wrap(err, "pattern")
}

func runPattern(ctx context.Context, args *config.Args) error {
	logger := logger.Ctx("pattern")
	p, err := pattern(args.Pattern.Grid)
	if err != nil {
		return err
	}
	bars := args.Pattern.Bars

	if args.Pattern.Out != "" {
		eng := engine.NewOffline(args.Format())
		inst, _ := newInstrument(eng, args)
		buf := sequencer.Bounce(p, timing.Tempo(args.Tempo), bars, inst, eng.Format())
		if err := writeWav(args.Pattern.Out, buf.Streamer(0, buf.Len()), eng); err != nil {
			return err
		}
		logger.Vol(util.Loudest).Log("wrote", bars, "bars to", args.Pattern.Out)
		return nil
	}

	eng := engine.New(args.Format(), args.Buffer)
	if err := eng.EnsureReady(); err != nil {
		return err
	}
	inst, _ := newInstrument(eng, args)

	steps := make(chan int, sequencer.StepsPerBar)
	seq := sequencer.New(inst,
		sequencer.WithTempo(args.Tempo),
		sequencer.WithPattern(p),
		sequencer.WithOnStep(func(step int) {
			select {
			case steps <- step:
			default:
			}
		}),
	)
	defer seq.Close()

	fmt.Print(p.String(), "\n\n")
	seq.Play()
	for played := 0; played < bars*sequencer.StepsPerBar; played++ {
		select {
		case <-ctx.Done():
			seq.Stop()
			eng.Clear()
			return nil
		case <-steps:
		}
	}
	seq.Stop()
	time.Sleep(ringOut)
	return nil
}

func writeWav(path string, s beep.Streamer, eng *engine.Engine) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create wav")
	}
	if err := wav.Encode(f, s, eng.Format()); err != nil {
		f.Close()
		return errors.Wrap(err, "encode wav")
	}
	return errors.Wrap(f.Close(), "close wav")
}

func runStream(ctx context.Context, args *config.Args) error {
	logger := logger.Ctx("stream")
	eng := engine.New(args.Format(), args.Buffer)
	if err := eng.EnsureReady(); err != nil {
		return err
	}

	changes := make(chan player.Status, 1)
	p := player.New(eng)
	defer p.Close()
	p.OnChange(func(s player.Status) {
		select {
		case <-changes:
		default:
		}
		select {
		case changes <- s:
		default:
		}
	})
	p.SetVolume(args.Volume)
	p.Load(args.Stream.Source)

	played := false
	last := player.Idle
	for {
		var s player.Status
		select {
		case <-ctx.Done():
			return nil
		case s = <-changes:
		}
		if s.State != last {
			logger.Vol(util.Loudest).Log(s.State, s.Source, s.Duration)
			last = s.State
		}

		switch s.State {
		case player.Error, player.Blocked:
			if s.Err != nil {
				return s.Err
			}
			return errors.Errorf("%s: %s", s.Source, s.State)
		case player.Ready:
			// Seek and Play notify before the next read, so a Ready seen after
			// Play is the end of the media
			if played {
				return nil
			}
			p.Seek(args.Stream.Start)
			p.Play()
			played = true
		}
	}
}

func runStudio(args *config.Args) error {
	f, err := os.OpenFile(args.Studio.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	defer f.Close()
	util.SetOutput(f)
	defer util.SetOutput(os.Stderr)

	p, err := pattern(args.Studio.Grid)
	if err != nil {
		return err
	}

	eng := engine.New(args.Format(), args.Buffer)
	inst, voices := newInstrument(eng, args)
	feed := tui.NewFeed()

	seq := sequencer.New(inst,
		sequencer.WithTempo(args.Tempo),
		sequencer.WithPattern(p),
		sequencer.WithOnStep(feed.OnStep),
	)
	defer seq.Close()

	var deck tui.Deck
	if args.Studio.Source != "" {
		pl := player.New(eng)
		defer pl.Close()
		pl.OnChange(feed.OnStatus)
		pl.SetVolume(args.Volume)
		pl.Load(args.Studio.Source)
		deck = pl
	}

	m := tui.NewModel(seq, deck, eng, feed, union(voices, p.Voices()))
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	eng.Clear()
	return errors.Wrap(err, "studio")
}
