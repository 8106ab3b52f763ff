package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
)

// maxQueryBytes bounds the request body of POST /query.
const maxQueryBytes = 4 << 10

// HTTP receives commands over HTTP:
//
//	POST /query  {"text": "where is my cup"}
//	POST /abort
//
// Both answer 202 Accepted once the command is queued and 503 when the
// queue is full.
type HTTP struct {
	queue   chan Command
	started atomic.Bool
}

// NewHTTP returns an HTTP source queueing up to buffer commands.
func NewHTTP(buffer int) *HTTP {
	if buffer <= 0 {
		buffer = 8
	}
	return &HTTP{queue: make(chan Command, buffer)}
}

// Register adds the handlers to mux.
func (h *HTTP) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /query", h.handleQuery)
	mux.HandleFunc("POST /abort", h.handleAbort)
}

// Commands implements [Source].
func (h *HTTP) Commands(ctx context.Context) (<-chan Command, error) {
	if !h.started.CompareAndSwap(false, true) {
		return nil, errors.New("voice: http source already started")
	}
	out := make(chan Command)
	go func() {
		defer close(out)
		for {
			select {
			case cmd := <-h.queue:
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type queryRequest struct {
	Text string `json:"text"`
}

type queuedResponse struct {
	Status string `json:"status"`
	Kind   string `json:"kind"`
}

func (h *HTTP) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		http.Error(w, "text must not be empty", http.StatusBadRequest)
		return
	}
	h.enqueue(w, Query(text))
}

func (h *HTTP) handleAbort(w http.ResponseWriter, _ *http.Request) {
	h.enqueue(w, Abort())
}

func (h *HTTP) enqueue(w http.ResponseWriter, cmd Command) {
	select {
	case h.queue <- cmd:
	default:
		http.Error(w, "command queue full", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(queuedResponse{Status: "queued", Kind: cmd.Kind.String()})
}

var _ Source = (*HTTP)(nil)
