package player

import (
	"context"

	"github.com/pkg/errors"
)

// ErrSourceMissing is reported when a player is asked to load or play without
// a source
var ErrSourceMissing = errors.New("no audio source")

// Reason classifies why a source could not be played
type Reason int

const (
	ReasonAborted Reason = iota + 1
	ReasonNetwork
	ReasonDecode
	ReasonUnsupported
	ReasonAutoplayBlocked
)

func (r Reason) String() string {
	switch r {
	case ReasonAborted:
		return "aborted"
	case ReasonNetwork:
		return "network"
	case ReasonDecode:
		return "decode"
	case ReasonUnsupported:
		return "unsupported"
	case ReasonAutoplayBlocked:
		return "autoplay-blocked"
	default:
		return "unknown"
	}
}

// Message is the user-facing text for the reason. These strings are stable.
func (r Reason) Message() string {
	switch r {
	case ReasonAborted:
		return "Loading was cancelled."
	case ReasonNetwork:
		return "Couldn't reach the audio file. Check the connection and retry."
	case ReasonDecode:
		return "The audio file couldn't be decoded."
	case ReasonUnsupported:
		return "This audio format isn't supported."
	case ReasonAutoplayBlocked:
		return "Audio is blocked until you interact. Press play to start."
	default:
		return "Playback failed."
	}
}

// MediaError is a classified playback failure. Error is the raw diagnostic,
// meant for logs; Message is what a user gets to see.
type MediaError struct {
	Reason Reason
	Raw    string
	err    error
}

func (e *MediaError) Error() string {
	return e.Reason.String() + ": " + e.Raw
}

func (e *MediaError) Message() string { return e.Reason.Message() }

func (e *MediaError) Unwrap() error { return e.err }

func mediaError(reason Reason, err error) *MediaError {
	return &MediaError{Reason: reason, Raw: err.Error(), err: err}
}

// classify turns any load failure into a MediaError. Cancellation is always
// Aborted; anything not classified where it happened counts as a network
// failure.
func classify(err error) *MediaError {
	if err == nil {
		return nil
	}
	var me *MediaError
	if errors.As(err, &me) {
		return me
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return mediaError(ReasonAborted, err)
	}
	return mediaError(ReasonNetwork, err)
}
