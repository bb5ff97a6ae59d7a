// Package streams is the chunked streamer plumbing behind offline rendering:
// generators hand out one chunk per step, and tracks, mixers and the
// quantiser compose them onto the sixteenth-note grid.
package streams

import (
	"beataddicts/studio/util"

	"github.com/faiface/beep"
)

var logger = util.Logger{}.Ctx("streams")

// Stream is a synchronous generator of beep.Streamers, nil when exhausted
type Stream func() *FStreamer

// FStreamer is a Streamer that also knows its Format
type FStreamer struct {
	beep.Streamer
	Format beep.Format
}

func F(f beep.Format, s beep.Streamer) *FStreamer {
	return &FStreamer{s, f}
}

// Rest is a chunk with no frames, the contribution of a step without a hit
func Rest() *FStreamer { return F(beep.Format{}, beep.Silence(0)) }

// Generator is anything that can hand out a Stream
type Generator interface {
	Stream() Stream
}

// StreamBuf replays one rendered hit every time its Stream is called
type StreamBuf struct {
	buf *beep.Buffer
}

func MakeStreamBuf(buf *beep.Buffer) StreamBuf {
	return StreamBuf{buf: buf}
}

func (sb StreamBuf) Stream() Stream {
	format := sb.buf.Format()
	return func() *FStreamer {
		return F(format, sb.buf.Streamer(0, sb.buf.Len()))
	}
}

// Mono copies a mono signal onto both channels of a new buffer
func Mono(format beep.Format, signal []float64) *beep.Buffer {
	i := 0
	buf := beep.NewBuffer(format)
	buf.Append(beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if i >= len(signal) {
			return 0, false
		}
		for n = range samples {
			if i >= len(signal) {
				return n, true
			}
			samples[n] = [2]float64{signal[i], signal[i]}
			i++
		}
		return len(samples), true
	}))
	return buf
}

// Delay plays s after `by` frames of silence. Every one-shot is scheduled this
// way, so each hit is an independent sound layered on the bus.
func Delay(by int, s beep.Streamer) beep.Streamer {
	if by <= 0 {
		return s
	}
	return beep.Seq(beep.Silence(by), s)
}
