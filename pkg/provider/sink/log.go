package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Log is a [Sink] that writes announcements to the structured log and,
// optionally, as plain lines to a writer. It never reports Busy.
type Log struct {
	mu     sync.Mutex
	logger *slog.Logger
	out    io.Writer
}

// LogOption configures a [Log] sink.
type LogOption func(*Log)

// WithWriter additionally prints every announcement as one line to w.
func WithWriter(w io.Writer) LogOption {
	return func(l *Log) { l.out = w }
}

// WithLogger overrides the logger. Default: [slog.Default].
func WithLogger(logger *slog.Logger) LogOption {
	return func(l *Log) { l.logger = logger }
}

// NewLog returns a log-backed sink.
func NewLog(opts ...LogOption) *Log {
	l := &Log{logger: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Announce implements [Sink].
func (l *Log) Announce(ctx context.Context, text string) (Status, error) {
	l.logger.InfoContext(ctx, "announcement", "text", text)
	if l.out == nil {
		return Accepted, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprintln(l.out, text); err != nil {
		return Accepted, fmt.Errorf("sink: write announcement: %w", err)
	}
	return Accepted, nil
}
