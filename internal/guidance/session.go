// Package guidance drives one voice-initiated search from query to result.
//
// A [Session] is a small state machine:
//
//	Idle      --NewQuery(supported)-->   Searching
//	any       --NewQuery(unsupported)--> Unsupported --> Idle (one notice)
//	Searching --target matched-->        Found
//	Found     --NewQuery(supported)-->   Searching
//	any       --Abort-->                 Idle
//
// A new query is accepted in any state and replaces the previous one; it
// never merges with it. The Searching → Found transition happens once per
// query: the relation to the neighbouring objects is computed a single time
// and announced in a single sink call. Later frames for the same query only
// feed the best-of-session accumulator of the target selector.
//
// Every result carries the query it was computed for. Frames processed for a
// query that is no longer current are reported as stale and change nothing.
package guidance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/crawlfree/internal/observe"
	"github.com/MrWong99/crawlfree/internal/relation"
	"github.com/MrWong99/crawlfree/internal/target"
	"github.com/MrWong99/crawlfree/pkg/provider/sink"
	"github.com/MrWong99/crawlfree/pkg/types"
)

var (
	// ErrUnsupportedLabel is returned by NewQuery when the request does not
	// resolve to a supported label.
	ErrUnsupportedLabel = errors.New("guidance: unsupported label")

	// ErrNoActiveQuery is returned by Abort when the session is idle.
	ErrNoActiveQuery = errors.New("guidance: no active query")
)

// State is the session state.
type State int

const (
	Idle State = iota
	Searching
	Found
	Unsupported
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case Found:
		return "found"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (s *State) UnmarshalText(text []byte) error {
	for _, v := range []State{Idle, Searching, Found, Unsupported} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("guidance: unknown state %q", text)
}

// Resolver maps a raw utterance to a supported label.
type Resolver interface {
	Resolve(text string) (label string, ok bool)
}

// Status is a consistent view of the session.
type Status struct {
	State State `json:"state"`

	// Query is the active query. It is zero when the session is idle.
	Query types.TargetQuery `json:"query"`

	// Target is the detection that completed the search. It is only set in
	// state Found.
	Target    types.Detection `json:"target"`
	HasTarget bool            `json:"has_target"`

	// Relation is computed once on the transition to Found.
	Relation types.RelationResult `json:"relation"`

	// Best is the most confident match seen for the active query. It keeps
	// improving after Found while Target stays fixed.
	Best    types.Detection `json:"best"`
	HasBest bool            `json:"has_best"`
}

// Outcome is the result of processing one frame.
type Outcome struct {
	Status

	// Stale reports that the frame belonged to a query that is no longer
	// current. Status then describes the current session, untouched.
	Stale bool

	// Announced reports that this frame completed the search.
	Announced bool
}

// Option configures a [Session].
type Option func(*Session)

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithTransitionHook registers fn to be called on every state change. It runs
// with the session locked and must not call back into the session.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(s *Session) { s.onTransition = fn }
}

// Session is the guidance state machine. It is safe for concurrent use.
type Session struct {
	resolver     Resolver
	selector     *target.Selector
	sink         sink.Sink
	metrics      *observe.Metrics
	onTransition func(from, to State)

	mu       sync.Mutex
	state    State
	query    types.TargetQuery
	found    types.Detection
	hasFound bool
	relation types.RelationResult
	lastTS   int64

	// prompted is the query whose search prompt the sink accepted. The found
	// announcement may cut that prompt short.
	prompted uuid.UUID
}

// New returns an idle Session.
func New(resolver Resolver, selector *target.Selector, out sink.Sink, opts ...Option) *Session {
	s := &Session{
		resolver: resolver,
		selector: selector,
		sink:     out,
		relation: types.Unknown(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// NewQuery starts a search for the label spoken in raw, replacing any active
// query. An unsupported request passes through [Unsupported], emits one
// notice and leaves the session [Idle]; the error then wraps
// [ErrUnsupportedLabel].
func (s *Session) NewQuery(ctx context.Context, raw string) (types.TargetQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()

	label, ok := s.resolver.Resolve(raw)
	if !ok {
		heard := strings.ToLower(strings.TrimSpace(raw))
		s.transitionLocked(Unsupported)
		s.announceLocked(ctx, UnsupportedPhrase(heard))
		s.transitionLocked(Idle)
		s.metrics.RecordQuery(ctx, "unsupported")
		slog.Info("guidance: unsupported query", "heard", heard)
		return types.TargetQuery{}, fmt.Errorf("%w: %q", ErrUnsupportedLabel, heard)
	}

	q := types.NewTargetQuery(label, s.lastTS)
	s.query = q
	s.selector.Begin(q)
	s.transitionLocked(Searching)
	if s.announceLocked(ctx, PromptSearch) {
		s.prompted = q.ID
	}
	s.metrics.RecordQuery(ctx, "accepted")
	slog.Info("guidance: search started", "label", label, "query_id", q.ID)
	return q, nil
}

// Abort ends the active query and returns the session to [Idle]. Results
// computed for the aborted query become stale.
func (s *Session) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle {
		return ErrNoActiveQuery
	}
	slog.Info("guidance: search aborted", "label", s.query.Label, "query_id", s.query.ID)
	s.clearLocked()
	s.transitionLocked(Idle)
	return nil
}

// ProcessFrame advances the session with the deduplicated frame computed for
// q. In [Searching], a target match computes the relation against the other
// detections, makes the single found announcement and moves to [Found].
// In [Found], frames only feed the best-of-session accumulator.
func (s *Session) ProcessFrame(ctx context.Context, q types.TargetQuery, frame types.Frame) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame.Timestamp > s.lastTS {
		s.lastTS = frame.Timestamp
	}
	if q.ID == uuid.Nil || q.ID != s.query.ID {
		return Outcome{Status: s.statusLocked(), Stale: true}
	}

	switch s.state {
	case Searching:
		d, ok := s.selector.Select(q, frame.Detections)
		if !ok {
			return Outcome{Status: s.statusLocked()}
		}
		rel := relation.Relate(d, relation.Neighbors(d, frame.Detections))
		s.found, s.hasFound, s.relation = d, true, rel
		s.metrics.RecordRelation(ctx, rel.Kind.String())
		s.transitionLocked(Found)
		s.interruptPromptLocked(q)
		s.announceLocked(ctx, FoundAnnouncement(q.Label, rel))
		observe.Logger(ctx).Info("guidance: target found",
			"label", q.Label,
			"confidence", d.Confidence,
			"relation", rel.Kind.String(),
			"reference", rel.Reference,
		)
		return Outcome{Status: s.statusLocked(), Announced: true}
	case Found:
		s.selector.Select(q, frame.Detections)
	}
	return Outcome{Status: s.statusLocked()}
}

// Current returns the session status.
func (s *Session) Current() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Active returns the active query. ok is false when the session is idle.
func (s *Session) Active() (q types.TargetQuery, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Searching && s.state != Found {
		return types.TargetQuery{}, false
	}
	return s.query, true
}

// IsCurrent reports whether id is the active query.
func (s *Session) IsCurrent(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id != uuid.Nil && id == s.query.ID
}

// Announce sends text to the sink outside of any state transition, e.g. the
// welcome message.
func (s *Session) Announce(ctx context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announceLocked(ctx, text)
}

func (s *Session) statusLocked() Status {
	best, hasBest := s.selector.Best()
	return Status{
		State:     s.state,
		Query:     s.query,
		Target:    s.found,
		HasTarget: s.hasFound,
		Relation:  s.relation,
		Best:      best,
		HasBest:   hasBest,
	}
}

// clearLocked drops the query and its results without changing state.
func (s *Session) clearLocked() {
	s.query = types.TargetQuery{}
	s.found, s.hasFound = types.Detection{}, false
	s.relation = types.Unknown()
	s.prompted = uuid.Nil
	s.selector.End()
}

func (s *Session) transitionLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	slog.Debug("guidance: state changed", "from", from.String(), "to", to.String())
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
}

// announceLocked makes one sink call and reports whether the sink accepted
// text. Busy is not retried and sink errors are logged only.
func (s *Session) announceLocked(ctx context.Context, text string) bool {
	status, err := s.sink.Announce(ctx, text)
	if err != nil {
		s.metrics.RecordAnnouncement(ctx, "error")
		slog.Warn("guidance: announcement failed", "err", err)
		return false
	}
	s.metrics.RecordAnnouncement(ctx, status.String())
	if status == sink.Busy {
		slog.Info("guidance: sink busy, announcement dropped", "text", text)
		return false
	}
	return true
}

// interruptPromptLocked stops q's search prompt if the sink supports it, so
// the found announcement is not dropped as Busy behind it.
func (s *Session) interruptPromptLocked(q types.TargetQuery) {
	if s.prompted != q.ID {
		return
	}
	s.prompted = uuid.Nil
	if in, ok := s.sink.(sink.Interrupter); ok {
		in.Interrupt()
	}
}
