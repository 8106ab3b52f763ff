package target_test

import (
	"testing"

	"github.com/MrWong99/crawlfree/internal/target"
	"github.com/MrWong99/crawlfree/pkg/types"
)

func det(label string, conf float64) types.Detection {
	return types.Detection{Label: label, Confidence: conf, Box: types.Rect{Right: 10, Bottom: 10}}
}

func TestPick(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		label  string
		dets   []types.Detection
		want   types.Detection
		wantOK bool
	}{
		{
			name:  "no detections",
			label: "cup",
		},
		{
			name:  "label mismatch",
			label: "cup",
			dets:  []types.Detection{det("bottle", 0.9)},
		},
		{
			name:  "below threshold",
			label: "cup",
			dets:  []types.Detection{det("cup", 0.49)},
		},
		{
			name:   "threshold is inclusive",
			label:  "cup",
			dets:   []types.Detection{det("cup", 0.5)},
			want:   det("cup", 0.5),
			wantOK: true,
		},
		{
			name:   "case insensitive",
			label:  "laptop",
			dets:   []types.Detection{det("Laptop", 0.8)},
			want:   det("Laptop", 0.8),
			wantOK: true,
		},
		{
			name:   "highest confidence wins",
			label:  "cup",
			dets:   []types.Detection{det("cup", 0.6), det("cup", 0.9), det("cup", 0.7)},
			want:   det("cup", 0.9),
			wantOK: true,
		},
		{
			name:  "tie keeps earliest",
			label: "cup",
			dets: []types.Detection{
				{Label: "cup", Confidence: 0.8, Box: types.Rect{Right: 1, Bottom: 1}},
				{Label: "cup", Confidence: 0.8, Box: types.Rect{Right: 2, Bottom: 2}},
			},
			want:   types.Detection{Label: "cup", Confidence: 0.8, Box: types.Rect{Right: 1, Bottom: 1}},
			wantOK: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := target.Pick(tc.label, target.DefaultMinConfidence, tc.dets)
			if ok != tc.wantOK {
				t.Fatalf("Pick ok = %v, want %v", ok, tc.wantOK)
			}
			if got != tc.want {
				t.Errorf("Pick = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSelector_BestOfSession(t *testing.T) {
	t.Parallel()

	s := target.New(0)
	q := types.NewTargetQuery("cup", 1)
	s.Begin(q)

	if _, ok := s.Best(); ok {
		t.Fatal("Best() reported a match before any frame")
	}

	s.Select(q, []types.Detection{det("cup", 0.6)})
	s.Select(q, []types.Detection{det("cup", 0.9)})
	got, ok := s.Select(q, []types.Detection{det("cup", 0.7)})
	if !ok || got.Confidence != 0.7 {
		t.Errorf("Select = %+v, %v; want the 0.7 frame match", got, ok)
	}

	best, ok := s.Best()
	if !ok || best.Confidence != 0.9 {
		t.Errorf("Best() = %+v, %v; want confidence 0.9", best, ok)
	}

	// A new query resets the accumulator.
	q2 := types.NewTargetQuery("cup", 5)
	s.Begin(q2)
	if _, ok := s.Best(); ok {
		t.Error("Best() survived Begin of a new query")
	}

	// Results for the previous query do not feed the new session.
	s.Select(q, []types.Detection{det("cup", 0.95)})
	if _, ok := s.Best(); ok {
		t.Error("stale query updated the accumulator")
	}
}

func TestNew_MinConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want float64
	}{
		{in: -1, want: target.DefaultMinConfidence},
		{in: 0, want: 0},
		{in: 0.8, want: 0.8},
	}
	for _, tc := range tests {
		if got := target.New(tc.in).MinConfidence(); got != tc.want {
			t.Errorf("New(%v).MinConfidence() = %v, want %v", tc.in, got, tc.want)
		}
	}

	q := types.NewTargetQuery("cup", 1)
	if _, ok := target.New(0).Select(q, []types.Detection{det("cup", 0.05)}); !ok {
		t.Error("zero floor rejected a low-confidence match")
	}
}

func TestSelector_Deterministic(t *testing.T) {
	t.Parallel()

	dets := []types.Detection{det("cup", 0.7), det("book", 0.9), det("cup", 0.7)}
	q := types.NewTargetQuery("cup", 1)

	a, _ := target.New(0.5).Select(q, dets)
	b, _ := target.New(0.5).Select(q, dets)
	if a != b {
		t.Errorf("Select not deterministic: %+v vs %+v", a, b)
	}
}
