package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/crawlfree/pkg/provider/sink"
)

// ErrAllFailed is returned when every sink in a [SinkFailover] failed or had
// an open breaker.
var ErrAllFailed = errors.New("resilience: all sinks failed")

type sinkEntry struct {
	name    string
	sink    sink.Sink
	breaker *Breaker
}

// SinkFailover is a [sink.Sink] that tries its sinks in order. Only errors
// move on to the next sink: a [sink.Busy] answer is returned as is, so a busy
// announcement is never repeated elsewhere.
type SinkFailover struct {
	cfg     BreakerConfig
	entries []sinkEntry
}

var (
	_ sink.Sink        = (*SinkFailover)(nil)
	_ sink.Interrupter = (*SinkFailover)(nil)
)

// NewSinkFailover returns a failover with primary as the preferred sink.
// cfg.Name is ignored; each sink's breaker is named after the sink.
func NewSinkFailover(primary sink.Sink, name string, cfg BreakerConfig) *SinkFailover {
	f := &SinkFailover{cfg: cfg}
	f.Add(name, primary)
	return f
}

// Add appends a fallback sink. It must not be called concurrently with
// Announce.
func (f *SinkFailover) Add(name string, s sink.Sink) {
	cfg := f.cfg
	cfg.Name = name
	f.entries = append(f.entries, sinkEntry{name: name, sink: s, breaker: NewBreaker(cfg)})
}

// Announce implements [sink.Sink].
func (f *SinkFailover) Announce(ctx context.Context, text string) (sink.Status, error) {
	var lastErr error
	for _, e := range f.entries {
		var status sink.Status
		err := e.breaker.Do(func() error {
			var err error
			status, err = e.sink.Announce(ctx, text)
			return err
		})
		if err == nil {
			return status, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("resilience: skipping sink", "sink", e.name)
			continue
		}
		slog.Warn("resilience: sink failed, trying next", "sink", e.name, "err", err)
	}
	return sink.Accepted, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// Interrupt implements [sink.Interrupter] by interrupting every sink that
// supports it.
func (f *SinkFailover) Interrupt() {
	for _, e := range f.entries {
		if in, ok := e.sink.(sink.Interrupter); ok {
			in.Interrupt()
		}
	}
}

// States reports each sink's breaker state keyed by sink name.
func (f *SinkFailover) States() map[string]State {
	out := make(map[string]State, len(f.entries))
	for _, e := range f.entries {
		out[e.name] = e.breaker.State()
	}
	return out
}
