package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// Command is a [Sink] that speaks by running an external text-to-speech
// program (e.g. espeak-ng or say) with the text as its last argument. While a
// previous utterance is still playing, Announce returns [Busy].
type Command struct {
	name string
	args []string

	mu          sync.Mutex
	running     bool
	interrupted bool
	cmd         *exec.Cmd
	done        chan struct{}
}

var (
	_ Sink        = (*Command)(nil)
	_ Interrupter = (*Command)(nil)
)

// NewCommand returns a sink that runs name with args followed by the text.
func NewCommand(name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, errors.New("sink: command name is required")
	}
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("sink: command %q: %w", name, err)
	}
	return &Command{name: name, args: args}, nil
}

// Announce implements [Sink]. It starts the program and returns without
// waiting for playback to finish.
func (c *Command) Announce(ctx context.Context, text string) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return Busy, nil
	}

	args := append(append([]string(nil), c.args...), text)
	// Playback must outlive the request context.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), c.name, args...)
	if err := cmd.Start(); err != nil {
		return Accepted, fmt.Errorf("sink: start %q: %w", c.name, err)
	}

	c.running = true
	c.interrupted = false
	c.cmd = cmd
	c.done = make(chan struct{})
	go c.wait(cmd, c.done)
	return Accepted, nil
}

func (c *Command) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	c.mu.Lock()
	interrupted := c.interrupted
	c.running = false
	c.cmd = nil
	c.mu.Unlock()
	switch {
	case err != nil && interrupted:
		slog.Debug("sink: tts command interrupted", "command", c.name)
	case err != nil:
		slog.Warn("sink: tts command failed", "command", c.name, "err", err)
	}
	close(done)
}

// Interrupt implements [Interrupter]. It kills the playing program and waits
// for it to exit.
func (c *Command) Interrupt() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.interrupted = true
	cmd, done := c.cmd, c.done
	c.mu.Unlock()

	if err := cmd.Process.Kill(); err != nil {
		slog.Debug("sink: kill tts command", "command", c.name, "err", err)
	}
	<-done
}

// Wait blocks until the current utterance, if any, has finished or ctx is
// done.
func (c *Command) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
