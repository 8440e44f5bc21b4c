package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/yomiage/pkg/provider/translate"
	"github.com/MrWong99/yomiage/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	translator map[string]func(TranslatorConfig) (translate.Translator, error)
	tts        map[string]func(TTSConfig) (tts.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		translator: make(map[string]func(TranslatorConfig) (translate.Translator, error)),
		tts:        make(map[string]func(TTSConfig) (tts.Provider, error)),
	}
}

// RegisterTranslator registers a translator factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTranslator(name string, factory func(TranslatorConfig) (translate.Translator, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translator[name] = factory
}

// RegisterTTS registers a synthesis engine factory under name.
func (r *Registry) RegisterTTS(name string, factory func(TTSConfig) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateTranslator instantiates a translator using the factory registered
// under cfg.Provider. Returns [ErrProviderNotRegistered] if no factory has
// been registered for that name.
func (r *Registry) CreateTranslator(cfg TranslatorConfig) (translate.Translator, error) {
	r.mu.RLock()
	factory, ok := r.translator[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: translator/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}

// CreateTTS instantiates a synthesis engine using the factory registered
// under cfg.Provider.
func (r *Registry) CreateTTS(cfg TTSConfig) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}
