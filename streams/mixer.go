package streams

import (
	"beataddicts/studio/util"

	"github.com/faiface/beep"
)

// Mixer superimposes its tracks one chunk at a time. A track that runs dry
// drops out of the mix; the mix ends with the last one.
type Mixer struct {
	Tracks []Stream
	Format beep.Format
}

func (m Mixer) Stream() Stream {
	logger := logger.Ctx("Mixer").Vol(util.Quieter)
	live := append([]Stream(nil), m.Tracks...)

	return func() *FStreamer {
		chunks := make([]beep.Streamer, 0, len(live))
		kept := live[:0]
		for _, next := range live {
			if chunk := next(); chunk != nil {
				chunks = append(chunks, chunk)
				kept = append(kept, next)
			}
		}
		live = kept
		if len(live) == 0 {
			logger.Log("all tracks exhausted")
			return nil
		}

		buf := beep.NewBuffer(m.Format)
		buf.Append(beep.Mix(chunks...))
		logger.Log("mixed", len(chunks), "chunks into", buf.Len(), "frames")
		return F(m.Format, buf.Streamer(0, buf.Len()))
	}
}

// MixAll mixes the streams of several generators
func MixAll[T Generator](format beep.Format, gens []T) Mixer {
	return Mixer{
		Tracks: util.Map(func(g T) Stream { return g.Stream() }, gens),
		Format: format,
	}
}
