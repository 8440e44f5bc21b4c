// Package mock provides a test double for the translate.Translator interface.
//
// Use Translator in unit tests to feed controlled translations into the
// pipeline and to verify which texts reached the backend, without a live
// model. All fields are safe to set before calling any method; mutating them
// during a concurrent call is the caller's responsibility.
//
// Example:
//
//	tr := &mock.Translator{Response: "こんにちは"}
//	out, err := tr.Translate(ctx, "hello")
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/yomiage/pkg/provider/translate"
)

// Call records a single invocation of Translate.
type Call struct {
	// Ctx is the context passed to Translate.
	Ctx context.Context
	// Text is the source text passed to Translate.
	Text string
}

// Translator is a mock implementation of translate.Translator.
type Translator struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Response is returned by Translate when non-empty. When empty, Translate
	// echoes the input text unchanged, which keeps per-job assertions simple.
	Response string

	// Err, if non-nil, is returned as the error from Translate.
	Err error

	// Delay, if positive, is how long Translate blocks before returning.
	// Translate returns ctx.Err() early if the context is cancelled while
	// waiting.
	Delay time.Duration

	// ModelName is returned by Model. Defaults to "mock-translator" when empty.
	ModelName string

	// --- Call records (read after test) ---

	// Calls records every invocation of Translate in order.
	Calls []Call
}

// Translate records the call, waits out Delay, and returns the configured
// response or error.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, Call{Ctx: ctx, Text: text})
	response := t.Response
	err := t.Err
	delay := t.Delay
	t.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err != nil {
		return "", err
	}
	if response == "" {
		return text, nil
	}
	return response, nil
}

// Model returns ModelName, or "mock-translator" when unset.
func (t *Translator) Model() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ModelName == "" {
		return "mock-translator"
	}
	return t.ModelName
}

// CallCount returns the number of recorded Translate calls. Thread-safe.
func (t *Translator) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (t *Translator) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = nil
}

// Ensure Translator implements translate.Translator at compile time.
var _ translate.Translator = (*Translator)(nil)
