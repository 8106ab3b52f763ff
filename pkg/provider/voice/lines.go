package voice

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
)

// DefaultAbortWords end the active search when a line consists of one of them.
var DefaultAbortWords = []string{"stop", "abort", "cancel"}

// LinesOption configures a [Lines] source.
type LinesOption func(*Lines)

// WithAbortWords replaces [DefaultAbortWords].
func WithAbortWords(words ...string) LinesOption {
	return func(l *Lines) { l.abortWords = words }
}

// Lines reads one utterance per line, e.g. from stdin or from a pipe fed by
// an external recogniser. Blank lines are skipped.
type Lines struct {
	r          io.Reader
	abortWords []string
	started    atomic.Bool
}

// NewLines returns a Lines source reading from r.
func NewLines(r io.Reader, opts ...LinesOption) *Lines {
	l := &Lines{r: r, abortWords: DefaultAbortWords}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Commands implements [Source]. Reading stops at EOF. A blocked read on r is
// not interrupted by ctx; the goroutine exits at the next line.
func (l *Lines) Commands(ctx context.Context) (<-chan Command, error) {
	if !l.started.CompareAndSwap(false, true) {
		return nil, errors.New("voice: lines source already started")
	}
	out := make(chan Command)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(l.r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			cmd := Query(line)
			if slices.Contains(l.abortWords, strings.ToLower(line)) {
				cmd = Abort()
			}
			select {
			case out <- cmd:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			slog.Warn("voice: read failed", "err", err)
		}
	}()
	return out, nil
}

var _ Source = (*Lines)(nil)
