// Package voice defines the Source interface for voice query backends.
//
// Speech recognition itself is external. A Source delivers what the
// recogniser heard as [Command] values: free-text queries ("where is my cup")
// and explicit aborts. Label resolution happens downstream; a Source never
// validates the text.
package voice

import "context"

// Kind tags a [Command].
type Kind int

const (
	// KindQuery asks for a new search. Text holds the utterance.
	KindQuery Kind = iota

	// KindAbort ends the active search.
	KindAbort
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	if k == KindAbort {
		return "abort"
	}
	return "query"
}

// Command is one user request.
type Command struct {
	Kind Kind
	Text string
}

// Query returns a KindQuery command for text.
func Query(text string) Command { return Command{Kind: KindQuery, Text: text} }

// Abort returns a KindAbort command.
func Abort() Command { return Command{Kind: KindAbort} }

// Source is the abstraction over any voice query backend.
type Source interface {
	// Commands starts delivering commands. The returned channel is closed
	// when the source is exhausted or ctx is cancelled. Commands may only be
	// called once per Source.
	Commands(ctx context.Context) (<-chan Command, error)
}
