// Package mock provides a test double for the sink.Sink interface.
//
// Use Sink to verify which guidance sentences were announced and to simulate a
// busy or failing backend.
//
// Example:
//
//	s := &mock.Sink{Status: sink.Busy}
//	status, _ := s.Announce(ctx, "hello")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/crawlfree/pkg/provider/sink"
)

// AnnounceCall records a single invocation of Announce.
type AnnounceCall struct {
	// Ctx is the context passed to Announce.
	Ctx context.Context
	// Text is the announced text.
	Text string
	// Interrupts is the number of Interrupt calls made before this one.
	Interrupts int
}

// Sink is a mock implementation of sink.Sink.
type Sink struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Status is returned by every Announce call. The zero value is Accepted.
	Status sink.Status

	// Err, if non-nil, is returned as the error from Announce.
	Err error

	// --- Call records ---

	// AnnounceCalls records every call to Announce in order.
	AnnounceCalls []AnnounceCall

	// InterruptCalls counts calls to Interrupt.
	InterruptCalls int
}

// Announce records the call and returns Status, Err.
func (s *Sink) Announce(ctx context.Context, text string) (sink.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AnnounceCalls = append(s.AnnounceCalls, AnnounceCall{Ctx: ctx, Text: text, Interrupts: s.InterruptCalls})
	return s.Status, s.Err
}

// Interrupt records the call.
func (s *Sink) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InterruptCalls++
}

// Texts returns the announced texts in order.
func (s *Sink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.AnnounceCalls))
	for i, c := range s.AnnounceCalls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AnnounceCalls = nil
	s.InterruptCalls = 0
}

var (
	_ sink.Sink        = (*Sink)(nil)
	_ sink.Interrupter = (*Sink)(nil)
)
