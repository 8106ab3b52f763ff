// Package sink defines the Sink interface for guidance announcement backends.
//
// A sink hands short guidance sentences to the user, typically through a
// text-to-speech engine. Announcements are fire-and-forget: the caller learns
// only whether the sink took the text ([Accepted]) or was still busy with an
// earlier one ([Busy]). Callers never retry a Busy announcement.
//
// Implementations must be safe for concurrent use and must not block for the
// duration of playback.
package sink

import "context"

// Status is the outcome of an [Sink.Announce] call.
type Status int

const (
	// Accepted means the sink took the text for playback.
	Accepted Status = iota

	// Busy means the sink was still playing an earlier announcement and
	// dropped this one.
	Busy
)

// String returns "accepted" or "busy".
func (s Status) String() string {
	if s == Busy {
		return "busy"
	}
	return "accepted"
}

// Sink is the abstraction over any announcement backend.
type Sink interface {
	// Announce hands text to the backend. A non-nil error means the backend
	// failed outright (e.g. the TTS binary is missing); Busy is not an error.
	Announce(ctx context.Context, text string) (Status, error)
}

// Interrupter is implemented by sinks that can cut the current utterance
// short. Interrupt returns once the sink is ready for the next announcement
// and is a no-op when nothing is playing.
type Interrupter interface {
	Interrupt()
}
