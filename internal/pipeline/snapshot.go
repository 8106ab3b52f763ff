package pipeline

import (
	"image"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/crawlfree/internal/guidance"
	"github.com/MrWong99/crawlfree/pkg/types"
)

// Snapshot is the complete result of one reasoning job. It is built once and
// never modified after publication; readers may share it freely.
type Snapshot struct {
	// Seq numbers published snapshots from 1.
	Seq uint64 `json:"seq"`

	// Timestamp is the camera frame timestamp.
	Timestamp int64 `json:"timestamp"`

	// QueryID is the query the job was computed for. Consumers discard
	// snapshots whose query is no longer current.
	QueryID uuid.UUID `json:"query_id"`

	// Width and Height are the preview frame dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Detections are the deduplicated detections in frame space.
	Detections []types.Detection `json:"detections"`

	// Tracks is the tracker snapshot after this frame.
	Tracks []types.TrackedObject `json:"tracks"`

	// Session is the guidance status after this frame.
	Session guidance.Status `json:"session"`

	// Image is the preview frame the job ran on.
	Image image.Image `json:"-"`
}

// broadcaster fans snapshots out to subscribers. Each subscriber holds at most
// one pending snapshot; a slow reader only ever sees the newest one.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan *Snapshot]struct{}
}

func (b *broadcaster) subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[chan *Snapshot]struct{})
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// publish is only called from the worker goroutine.
func (b *broadcaster) publish(s *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// Replace the unread snapshot with the newer one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
