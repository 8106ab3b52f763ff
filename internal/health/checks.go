package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNeverSeen is reported by [Freshness] before the first event.
var ErrNeverSeen = errors.New("no event yet")

// Freshness returns a Checker that fails when last reports a zero time or a
// time older than maxAge. It is used for the camera: the preview stream is
// healthy while frames keep arriving.
func Freshness(name string, last func() time.Time, maxAge time.Duration) Checker {
	return Checker{
		Name: name,
		Check: func(_ context.Context) error {
			t := last()
			if t.IsZero() {
				return ErrNeverSeen
			}
			if age := time.Since(t); age > maxAge {
				return fmt.Errorf("last event %s ago, limit %s", age.Round(time.Millisecond), maxAge)
			}
			return nil
		},
	}
}

// Healthy returns a Checker that fails with the error reported by state. It
// is used for the detector: state returns the fatal error that stopped the
// reasoning worker, or nil while it runs.
func Healthy(name string, state func() error) Checker {
	return Checker{
		Name:  name,
		Check: func(_ context.Context) error { return state() },
	}
}
