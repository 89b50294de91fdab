package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/provider/llm"
	"github.com/MrWong99/relayvox/pkg/provider/stt"
	"github.com/MrWong99/relayvox/pkg/provider/translate"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
	"github.com/MrWong99/relayvox/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// factories is one kind's name-to-constructor table.
type factories[T any] map[string]func(ProviderEntry) (T, error)

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	audio     factories[audio.Input]
	playback  factories[audio.Output]
	vad       factories[vad.Engine]
	stt       factories[stt.Provider]
	translate factories[translate.Provider]
	tts       factories[tts.Provider]
	llm       factories[llm.Provider]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		audio:     make(factories[audio.Input]),
		playback:  make(factories[audio.Output]),
		vad:       make(factories[vad.Engine]),
		stt:       make(factories[stt.Provider]),
		translate: make(factories[translate.Provider]),
		tts:       make(factories[tts.Provider]),
		llm:       make(factories[llm.Provider]),
	}
}

func register[T any](r *Registry, m factories[T], name string, factory func(ProviderEntry) (T, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m[name] = factory
}

func create[T any](r *Registry, m factories[T], kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := m[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

// RegisterAudio registers an audio input factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterAudio(name string, factory func(ProviderEntry) (audio.Input, error)) {
	register(r, r.audio, name, factory)
}

// RegisterPlayback registers an audio output factory under name.
func (r *Registry) RegisterPlayback(name string, factory func(ProviderEntry) (audio.Output, error)) {
	register(r, r.playback, name, factory)
}

// RegisterVAD registers a VAD engine factory under name.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Engine, error)) {
	register(r, r.vad, name, factory)
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	register(r, r.stt, name, factory)
}

// RegisterTranslate registers a translation provider factory under name.
func (r *Registry) RegisterTranslate(name string, factory func(ProviderEntry) (translate.Provider, error)) {
	register(r, r.translate, name, factory)
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	register(r, r.tts, name, factory)
}

// RegisterLLM registers an LLM provider factory under name. LLM providers are
// not configured directly; translate factories use them as backends.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	register(r, r.llm, name, factory)
}

// CreateAudio instantiates an audio input using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateAudio(entry ProviderEntry) (audio.Input, error) {
	return create(r, r.audio, "audio", entry)
}

// CreatePlayback instantiates an audio output using the factory registered under entry.Name.
func (r *Registry) CreatePlayback(entry ProviderEntry) (audio.Output, error) {
	return create(r, r.playback, "playback", entry)
}

// CreateVAD instantiates a VAD engine using the factory registered under entry.Name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	return create(r, r.vad, "vad", entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return create(r, r.stt, "stt", entry)
}

// CreateTranslate instantiates a translation provider using the factory registered under entry.Name.
func (r *Registry) CreateTranslate(entry ProviderEntry) (translate.Provider, error) {
	return create(r, r.translate, "translate", entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return create(r, r.tts, "tts", entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// Names returns the sorted provider names registered for kind ("audio",
// "playback", "vad", "stt", "translate", "tts" or "llm"). Unknown kinds
// return nil.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "audio":
		names = keys(r.audio)
	case "playback":
		names = keys(r.playback)
	case "vad":
		names = keys(r.vad)
	case "stt":
		names = keys(r.stt)
	case "translate":
		names = keys(r.translate)
	case "tts":
		names = keys(r.tts)
	case "llm":
		names = keys(r.llm)
	}
	return names
}

func keys[T any](m factories[T]) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
