package streams

import (
	"fmt"

	"beataddicts/studio/util"
)

// Track hands out one chunk per step: a fresh hit of Sound on an active step,
// a Rest otherwise
type Track struct {
	Steps []bool
	Loop  bool
	Sound Stream
}

func (tr Track) Stream() Stream {
	logger := logger.Ctx("Track").Vol(util.Quieter)
	n := 0

	return func() *FStreamer {
		if n >= len(tr.Steps) {
			logger.Log("track complete")
			return nil
		}

		chunk := Rest()
		if tr.Steps[n] {
			if chunk = tr.Sound(); chunk == nil {
				logger.Log("sound exhausted at step", n)
				return nil
			}
		}

		n++
		if tr.Loop {
			n %= len(tr.Steps)
		}
		return chunk
	}
}

func (tr Track) String() string {
	return fmt.Sprintf("Track(steps=%v loop=%v)", tr.Steps, tr.Loop)
}
