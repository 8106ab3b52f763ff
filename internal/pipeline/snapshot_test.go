package pipeline

import "testing"

func TestBroadcaster_KeepsNewest(t *testing.T) {
	t.Parallel()

	var b broadcaster
	ch, unsubscribe := b.subscribe()

	for seq := uint64(1); seq <= 3; seq++ {
		b.publish(&Snapshot{Seq: seq})
	}
	if got := (<-ch).Seq; got != 3 {
		t.Errorf("received seq %d, want 3", got)
	}

	unsubscribe()
	unsubscribe()
	b.publish(&Snapshot{Seq: 4})
	select {
	case s := <-ch:
		t.Errorf("received seq %d after unsubscribe", s.Seq)
	default:
	}
}
