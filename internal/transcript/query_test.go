package transcript_test

import (
	"testing"

	"github.com/MrWong99/crawlfree/internal/labels"
	"github.com/MrWong99/crawlfree/internal/transcript"
	"github.com/MrWong99/crawlfree/internal/transcript/phonetic"
)

// stubMatcher returns a fixed answer for one phrase.
type stubMatcher struct {
	phrase, label string
	calls         []string
}

func (s *stubMatcher) Match(phrase string) (string, float64, bool) {
	s.calls = append(s.calls, phrase)
	if phrase == s.phrase {
		return s.label, 0.9, true
	}
	return "", 0, false
}

func TestParse_Exact(t *testing.T) {
	t.Parallel()

	p := transcript.NewParser(labels.MustDefault())

	tests := []struct {
		text string
		want string
	}{
		{"laptop", "laptop"},
		{"Where is my LAPTOP?", "laptop"},
		{"find the cup, or the bottle", "cup"},
		{"  chair ", "chair"},
	}
	for _, tc := range tests {
		got, ok := p.Parse(tc.text)
		if !ok {
			t.Errorf("Parse(%q): ok=false, want true", tc.text)
			continue
		}
		if got.Label != tc.want || got.Method != transcript.MethodExact {
			t.Errorf("Parse(%q) = %+v, want label %q via exact", tc.text, got, tc.want)
		}
	}
}

func TestParse_Unsupported(t *testing.T) {
	t.Parallel()

	p := transcript.NewParser(labels.MustDefault(),
		transcript.WithPhoneticMatcher(phonetic.New(labels.Default)))

	for _, text := range []string{"television", "", "?!"} {
		if got, ok := p.Parse(text); ok {
			t.Errorf("Parse(%q) = %+v, want unsupported", text, got)
		}
	}
}

func TestParse_PhoneticFallback(t *testing.T) {
	t.Parallel()

	p := transcript.NewParser(labels.MustDefault(),
		transcript.WithPhoneticMatcher(phonetic.New(labels.Default)))

	got, ok := p.Parse("find the lap top")
	if !ok {
		t.Fatal("Parse: ok=false, want true")
	}
	if got.Label != "laptop" || got.Method != transcript.MethodPhonetic {
		t.Errorf("Parse = %+v, want laptop via phonetic", got)
	}
}

func TestParse_WindowOrder(t *testing.T) {
	t.Parallel()

	m := &stubMatcher{phrase: "key bored", label: "keyboard"}
	p := transcript.NewParser(labels.MustDefault(), transcript.WithPhoneticMatcher(m))

	got, ok := p.Parse("my key bored")
	if !ok || got.Label != "keyboard" || got.Heard != "key bored" {
		t.Fatalf("Parse = %+v, %v; want keyboard heard as %q", got, ok, "key bored")
	}

	// Two-word windows are tried before single words, and short single words
	// are skipped.
	want := []string{"my key", "key bored"}
	if len(m.calls) != len(want) {
		t.Fatalf("matcher calls = %q, want %q", m.calls, want)
	}
	for i := range want {
		if m.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, m.calls[i], want[i])
		}
	}
}

func TestParse_IgnoresLabelsOutsideSet(t *testing.T) {
	t.Parallel()

	set, err := labels.NewSet([]string{"cup"})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	m := &stubMatcher{phrase: "laptop", label: "laptop"}
	p := transcript.NewParser(set, transcript.WithPhoneticMatcher(m))

	if got, ok := p.Parse("laptop"); ok {
		t.Errorf("Parse = %+v, want unsupported", got)
	}
}
