package sequencer

import "beataddicts/studio/util"

// Command is a transport or edit message for a Sequencer. The set is closed:
// only the types in this file implement it.
type Command interface {
	command()
}

type (
	PlayCmd  struct{}
	PauseCmd struct{}
	StopCmd  struct{}
	// TogglePlayCmd plays when not playing and pauses otherwise
	TogglePlayCmd struct{}
	ToggleStepCmd struct {
		Voice string
		Step  int
	}
	SetTempoCmd     struct{ BPM float64 }
	NudgeTempoCmd   struct{ Delta float64 }
	SetPatternCmd   struct{ Pattern Pattern }
	ResetPatternCmd struct{}
)

func (PlayCmd) command()         {}
func (PauseCmd) command()        {}
func (StopCmd) command()         {}
func (TogglePlayCmd) command()   {}
func (ToggleStepCmd) command()   {}
func (SetTempoCmd) command()     {}
func (NudgeTempoCmd) command()   {}
func (SetPatternCmd) command()   {}
func (ResetPatternCmd) command() {}

// Apply runs a command
func (s *Sequencer) Apply(c Command) {
	switch c := c.(type) {
	case PlayCmd:
		s.Play()
	case PauseCmd:
		s.Pause()
	case StopCmd:
		s.Stop()
	case TogglePlayCmd:
		if s.State() == Playing {
			s.Pause()
		} else {
			s.Play()
		}
	case ToggleStepCmd:
		s.ToggleStep(c.Voice, c.Step)
	case SetTempoCmd:
		s.SetTempo(c.BPM)
	case NudgeTempoCmd:
		s.SetTempo(float64(s.Tempo()) + c.Delta)
	case SetPatternCmd:
		s.SetPattern(c.Pattern)
	case ResetPatternCmd:
		s.ResetPattern()
	default:
		logger.Ctx("Apply").Vol(util.Loud).Logf("unhandled command %T", c)
	}
}
