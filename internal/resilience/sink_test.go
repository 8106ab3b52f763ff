package resilience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/crawlfree/internal/resilience"
	"github.com/MrWong99/crawlfree/pkg/provider/sink"
	sinkmock "github.com/MrWong99/crawlfree/pkg/provider/sink/mock"
)

var errSpeech = errors.New("espeak-ng: not found")

func TestSinkFailover_PrimaryAccepts(t *testing.T) {
	t.Parallel()
	primary, fallback := &sinkmock.Sink{}, &sinkmock.Sink{}
	f := resilience.NewSinkFailover(primary, "command", resilience.BreakerConfig{})
	f.Add("log", fallback)

	status, err := f.Announce(context.Background(), "hello")
	if err != nil || status != sink.Accepted {
		t.Fatalf("Announce = (%v, %v), want (accepted, nil)", status, err)
	}
	if len(fallback.AnnounceCalls) != 0 {
		t.Errorf("fallback called %d times, want 0", len(fallback.AnnounceCalls))
	}
}

func TestSinkFailover_BusyIsNotFailedOver(t *testing.T) {
	t.Parallel()
	primary, fallback := &sinkmock.Sink{Status: sink.Busy}, &sinkmock.Sink{}
	f := resilience.NewSinkFailover(primary, "command", resilience.BreakerConfig{})
	f.Add("log", fallback)

	status, err := f.Announce(context.Background(), "hello")
	if err != nil || status != sink.Busy {
		t.Fatalf("Announce = (%v, %v), want (busy, nil)", status, err)
	}
	if len(fallback.AnnounceCalls) != 0 {
		t.Errorf("fallback called %d times, want 0", len(fallback.AnnounceCalls))
	}
}

func TestSinkFailover_ErrorFallsThrough(t *testing.T) {
	t.Parallel()
	primary, fallback := &sinkmock.Sink{Err: errSpeech}, &sinkmock.Sink{}
	f := resilience.NewSinkFailover(primary, "command", resilience.BreakerConfig{MaxFailures: 2})
	f.Add("log", fallback)

	for range 3 {
		if _, err := f.Announce(context.Background(), "hello"); err != nil {
			t.Fatalf("Announce returned error: %v", err)
		}
	}
	if got := len(primary.AnnounceCalls); got != 2 {
		t.Errorf("primary calls = %d, want 2 (breaker opens after 2 failures)", got)
	}
	if got := len(fallback.AnnounceCalls); got != 3 {
		t.Errorf("fallback calls = %d, want 3", got)
	}
	if got := f.States()["command"]; got != resilience.Open {
		t.Errorf("command breaker = %v, want open", got)
	}
}

func TestSinkFailover_AllFailed(t *testing.T) {
	t.Parallel()
	f := resilience.NewSinkFailover(&sinkmock.Sink{Err: errSpeech}, "command", resilience.BreakerConfig{})

	_, err := f.Announce(context.Background(), "hello")
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errSpeech) {
		t.Errorf("err = %v, want it to wrap the sink error", err)
	}
}

func TestSinkFailover_Interrupt(t *testing.T) {
	t.Parallel()
	primary, fallback := &sinkmock.Sink{}, &sinkmock.Sink{}
	f := resilience.NewSinkFailover(primary, "command", resilience.BreakerConfig{})
	f.Add("log", sink.NewLog())
	f.Add("spare", fallback)

	f.Interrupt()

	if primary.InterruptCalls != 1 || fallback.InterruptCalls != 1 {
		t.Errorf("interrupts = (%d, %d), want (1, 1)", primary.InterruptCalls, fallback.InterruptCalls)
	}
}
