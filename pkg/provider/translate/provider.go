// Package translate defines the Translator interface for LLM translation
// backends.
//
// A translator wraps a chat-completion API (a local Ollama instance by
// default, or any hosted provider) and exposes a single operation: turn a
// source sentence into natural Japanese suitable for reading aloud. The
// surrounding pipeline owns queueing, pronunciation cleanup, and speech
// synthesis; backends only talk to their model.
package translate

import (
	"context"
	"errors"
)

// ErrInvalidInput is returned by Translate when text is empty or
// whitespace-only. Callers distinguish it from backend failures with
// errors.Is: invalid input is dropped with a warning, while backend failures
// count against the translation stage.
var ErrInvalidInput = errors.New("translate: text is required")

// Prompt returns the instruction sent to the model for text. Every backend
// sends the same prompt so that switching providers does not change the
// translation register.
func Prompt(text string) string {
	return "Translate to Japanese:\n\n" + text
}

// Translator is the abstraction over any translation backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must return promptly when ctx is cancelled.
type Translator interface {
	// Translate converts text into Japanese and returns the model output with
	// surrounding whitespace trimmed. It returns ErrInvalidInput when text is
	// empty or whitespace-only, without contacting the backend.
	Translate(ctx context.Context, text string) (string, error)

	// Model returns the identifier of the underlying model, used in log
	// records and the translation audit log.
	Model() string
}
