package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/crawlfree/pkg/provider/detector"
	"github.com/MrWong99/crawlfree/pkg/provider/sink"
	"github.com/MrWong99/crawlfree/pkg/provider/voice"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	detector map[string]func(DetectorConfig) (detector.Engine, error)
	sink     map[string]func(SinkConfig) (sink.Sink, error)
	voice    map[string]func(QueryConfig) (voice.Source, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		detector: make(map[string]func(DetectorConfig) (detector.Engine, error)),
		sink:     make(map[string]func(SinkConfig) (sink.Sink, error)),
		voice:    make(map[string]func(QueryConfig) (voice.Source, error)),
	}
}

// RegisterDetector registers a detector engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterDetector(name string, factory func(DetectorConfig) (detector.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detector[name] = factory
}

// RegisterSink registers an announcement sink factory under name.
func (r *Registry) RegisterSink(name string, factory func(SinkConfig) (sink.Sink, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink[name] = factory
}

// RegisterVoice registers a voice query source factory under name.
func (r *Registry) RegisterVoice(name string, factory func(QueryConfig) (voice.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voice[name] = factory
}

// CreateDetector instantiates a detector engine using the factory registered
// under cfg.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateDetector(cfg DetectorConfig) (detector.Engine, error) {
	r.mu.RLock()
	factory, ok := r.detector[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: detector/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateSink instantiates an announcement sink using the factory registered under cfg.Name.
func (r *Registry) CreateSink(cfg SinkConfig) (sink.Sink, error) {
	r.mu.RLock()
	factory, ok := r.sink[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sink/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateVoice instantiates a voice query source using the factory registered under cfg.Source.
func (r *Registry) CreateVoice(cfg QueryConfig) (voice.Source, error) {
	r.mu.RLock()
	factory, ok := r.voice[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: voice/%q", ErrProviderNotRegistered, cfg.Source)
	}
	return factory(cfg)
}
