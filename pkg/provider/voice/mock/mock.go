// Package mock provides a test double for the voice.Source interface.
//
// The scripted Commands are delivered in order. With KeepOpen set the channel
// stays open until the context is cancelled, which mimics a live microphone.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/crawlfree/pkg/provider/voice"
)

// Source is a mock implementation of voice.Source.
type Source struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Script is delivered by Commands in order.
	Script []voice.Command

	// KeepOpen keeps the channel open after the script is delivered.
	KeepOpen bool

	// Err, if non-nil, is returned from Commands.
	Err error

	// --- Call records ---

	// CommandsCalls counts calls to Commands.
	CommandsCalls int

	// Delivered counts commands received by the consumer.
	Delivered int
}

// Commands records the call and streams Script.
func (s *Source) Commands(ctx context.Context) (<-chan voice.Command, error) {
	s.mu.Lock()
	s.CommandsCalls++
	script, keepOpen, err := append([]voice.Command(nil), s.Script...), s.KeepOpen, s.Err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(chan voice.Command)
	go func() {
		defer close(out)
		for _, cmd := range script {
			select {
			case out <- cmd:
				s.mu.Lock()
				s.Delivered++
				s.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
		if keepOpen {
			<-ctx.Done()
		}
	}()
	return out, nil
}

// DeliveredCount returns the number of commands received so far.
func (s *Source) DeliveredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Delivered
}

var _ voice.Source = (*Source)(nil)
