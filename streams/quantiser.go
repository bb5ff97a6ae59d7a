package streams

import (
	"beataddicts/studio/timing"
	"beataddicts/studio/util"

	"github.com/faiface/beep"
)

// Quantiser lays the chunks of Incoming onto a grid of Tempo / Quantisation.
// Each output chunk is exactly one grid step long; whatever rings past the end
// of a step is carried into the next one.
type Quantiser struct {
	Incoming     Stream
	Tempo        timing.Tempo
	Quantisation timing.Quantisation
	Format       beep.Format
}

// Stream implements the Generator interface for Quantiser
func (q Quantiser) Stream() Stream {
	logger := logger.Ctx("Quantiser.Stream").Vol(util.Normal)
	buf := beep.NewBuffer(q.Format)
	step := timing.Timing{}.From(q.Tempo, q.Format).Quantise(q.Quantisation)

	logger.Log("initialising", step)
	return func() *FStreamer {
		logger := logger.Ctx("outStream").Vol(util.Quieter)
		tail := TruncateHead(buf, step.Samples)
		buf = beep.NewBuffer(q.Format)
		nxt := q.Incoming()

		// handle upstream exhausted
		if nxt == nil {
			logger.Log("upstream exhausted")
			return nil
		}

		buf.Append(
			beep.Mix(
				// at least one step long
				beep.Silence(step.Samples),
				// the new sounds coming in from Incoming
				nxt,
				// the tail end of the previous chunk
				tail.Streamer(0, tail.Len()),
			),
		)

		logger.Log("sending quantised chunk")
		return F(q.Format, buf.Streamer(0, step.Samples))
	}
}
