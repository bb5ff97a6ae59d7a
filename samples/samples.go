// Package samples holds wav one-shots that can stand in for synthesised voices.
//
// A Kit is built once by main and handed to whoever needs it; there is no
// package-level default kit.
package samples

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"beataddicts/studio/streams"
	"beataddicts/studio/util"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
)

var logger = util.Logger{}.Ctx("samples")

// resampling quality passed to beep.Resample
const resampleQuality = 4

type Sample struct {
	path   string
	format beep.Format
	buf    *beep.Buffer
}

// Load decodes a wav file and converts it to the target sample rate
func Load(path string, target beep.Format) (*Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open sample")
	}
	defer file.Close()

	decoded, format, err := wav.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	defer decoded.Close()

	var s beep.Streamer = decoded
	if format.SampleRate != target.SampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, target.SampleRate, decoded)
	}

	buf := beep.NewBuffer(target)
	buf.Append(s)
	return &Sample{path: path, format: target, buf: buf}, nil
}

// FromBuffer wraps already decoded audio
func FromBuffer(name string, buf *beep.Buffer) *Sample {
	return &Sample{path: name, format: buf.Format(), buf: buf}
}

func (s *Sample) Path() string                { return s.path }
func (s *Sample) Format() beep.Format         { return s.format }
func (s *Sample) Duration() time.Duration     { return s.format.SampleRate.D(s.buf.Len()) }
func (s *Sample) Len() int                    { return s.buf.Len() }
func (s *Sample) Streamer() beep.StreamSeeker { return s.buf.Streamer(0, s.buf.Len()) }

// Output is where a kit plays its hits
type Output interface {
	Ready() bool
	Format() beep.Format
	Play(s ...beep.Streamer) error
}

// Triggerer is anything that can play a named voice
type Triggerer interface {
	Trigger(voice string, offset time.Duration)
}

// Kit maps voice names onto samples and falls back to another instrument
// (normally the synth) for voices it has no sample for
type Kit struct {
	out      Output
	fallback Triggerer

	mu      sync.RWMutex
	samples map[string]*Sample
}

func NewKit(out Output, fallback Triggerer) *Kit {
	return &Kit{out: out, fallback: fallback, samples: map[string]*Sample{}}
}

func (k *Kit) Add(voice string, s *Sample) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.samples[voice] = s
}

func (k *Kit) Sample(voice string) (*Sample, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.samples[voice]
	return s, ok
}

// Voices lists the voices backed by a sample, sorted
func (k *Kit) Voices() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.samples))
	for name := range k.samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir adds every <voice>.wav in dir. Files that fail to decode are
// skipped and reported together.
func (k *Kit) LoadDir(dir string) error {
	logger := logger.Ctx("LoadDir").Vol(util.Normal)
	paths, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return errors.Wrap(err, "list samples")
	}

	var failed []string
	for _, path := range paths {
		s, err := Load(path, k.out.Format())
		if err != nil {
			logger.Vol(util.Loud).Log(err)
			failed = append(failed, filepath.Base(path))
			continue
		}
		voice := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		k.Add(voice, s)
		logger.Log("loaded", voice, "from", s.Path(), s.Duration())
	}
	if len(failed) > 0 {
		return errors.Errorf("could not load %s", strings.Join(failed, ", "))
	}
	return nil
}

// Trigger plays the voice's sample, or hands the voice to the fallback
func (k *Kit) Trigger(voice string, offset time.Duration) {
	s, ok := k.Sample(voice)
	if !ok {
		if k.fallback != nil {
			k.fallback.Trigger(voice, offset)
		}
		return
	}
	if !k.out.Ready() {
		logger.Ctx("Trigger").Vol(util.Quiet).Log("output not ready, skipping", voice)
		return
	}

	delay := k.out.Format().SampleRate.N(util.Max(offset, 0))
	if err := k.out.Play(streams.Delay(delay, s.Streamer())); err != nil {
		logger.Ctx("Trigger").Vol(util.Loud).Log(voice, err)
	}
}

// Sounder hands out fresh hits of a voice for offline rendering
type Sounder interface {
	Sound(voice string) streams.Stream
}

// Sound is the sample of a voice, once per call. Voices without a sample
// come from the fallback when it can render offline, and are silent
// otherwise.
func (k *Kit) Sound(voice string) streams.Stream {
	s, ok := k.Sample(voice)
	if !ok {
		if sounder, ok := k.fallback.(Sounder); ok {
			return sounder.Sound(voice)
		}
		format := k.out.Format()
		return func() *streams.FStreamer { return streams.F(format, beep.Silence(0)) }
	}
	return streams.MakeStreamBuf(s.buf).Stream()
}
