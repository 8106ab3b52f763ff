package voice_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/crawlfree/pkg/provider/voice"
)

func drain(t *testing.T, ch <-chan voice.Command, n int) []voice.Command {
	t.Helper()
	var got []voice.Command
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case cmd, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, cmd)
		case <-timeout:
			t.Fatalf("timed out after %d of %d commands", len(got), n)
		}
	}
	return got
}

func TestLines(t *testing.T) {
	t.Parallel()

	src := voice.NewLines(strings.NewReader("where is my laptop\n\n  STOP \nfind the cup\n"))
	ch, err := src.Commands(context.Background())
	if err != nil {
		t.Fatalf("Commands: %v", err)
	}

	got := drain(t, ch, 4)
	want := []voice.Command{
		voice.Query("where is my laptop"),
		voice.Abort(),
		voice.Query("find the cup"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	if _, err := src.Commands(context.Background()); err == nil {
		t.Error("second Commands call error = nil, want error")
	}
}

func TestLines_CustomAbortWords(t *testing.T) {
	t.Parallel()

	src := voice.NewLines(strings.NewReader("stop\nnevermind\n"), voice.WithAbortWords("nevermind"))
	ch, err := src.Commands(context.Background())
	if err != nil {
		t.Fatalf("Commands: %v", err)
	}
	got := drain(t, ch, 3)
	want := []voice.Command{voice.Query("stop"), voice.Abort()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTP(t *testing.T) {
	t.Parallel()

	src := voice.NewHTTP(4)
	mux := http.NewServeMux()
	src.Register(mux)

	post := func(path, body string) int {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		return rec.Code
	}

	tests := []struct {
		path, body string
		want       int
	}{
		{"/query", `{"text": "where is my cup"}`, http.StatusAccepted},
		{"/query", `{"text": "  "}`, http.StatusBadRequest},
		{"/query", `{"txt": "cup"}`, http.StatusBadRequest},
		{"/query", `not json`, http.StatusBadRequest},
		{"/abort", ``, http.StatusAccepted},
	}
	for _, tc := range tests {
		if got := post(tc.path, tc.body); got != tc.want {
			t.Errorf("POST %s %q status = %d, want %d", tc.path, tc.body, got, tc.want)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := src.Commands(ctx)
	if err != nil {
		t.Fatalf("Commands: %v", err)
	}
	got := drain(t, ch, 2)
	want := []voice.Command{voice.Query("where is my cup"), voice.Abort()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received command after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Error("channel not closed after cancel")
	}
}

func TestHTTP_QueueFull(t *testing.T) {
	t.Parallel()

	src := voice.NewHTTP(1)
	mux := http.NewServeMux()
	src.Register(mux)

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/abort", nil))
		codes[i] = rec.Code
	}
	if diff := cmp.Diff([]int{http.StatusAccepted, http.StatusServiceUnavailable}, codes); diff != "" {
		t.Errorf("status codes mismatch (-want +got):\n%s", diff)
	}
}
