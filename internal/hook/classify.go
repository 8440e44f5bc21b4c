package hook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/yomiage/pkg/provider/translate/anyllm"
)

// LLM is the one completion call intent classification needs.
type LLM interface {
	// Complete sends prompt as a single user message and returns the model's
	// reply, trimmed.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Classifier labels assistant messages with an Intent by asking a small
// local model.
type Classifier struct {
	llm LLM
}

// NewClassifier returns a Classifier that consults llm.
func NewClassifier(llm LLM) *Classifier {
	return &Classifier{llm: llm}
}

// Classify asks the model which intent message expresses. Classification
// never fails: model errors and unparseable replies both resolve to
// DefaultIntent, logged at warn level.
func (c *Classifier) Classify(ctx context.Context, message string) Intent {
	reply, err := c.llm.Complete(ctx, BuildClassificationPrompt(message))
	if err != nil {
		slog.Warn("intent classification failed, using default",
			"error", err,
			"default", DefaultIntent)
		return DefaultIntent
	}

	intent := ResolveIntent(reply)
	slog.Debug("classified intent", "reply", reply, "intent", intent)
	return intent
}

// AnyLLM adapts an any-llm-go backend to the LLM interface.
type AnyLLM struct {
	backend anyllmlib.Provider
	model   string
}

var _ LLM = (*AnyLLM)(nil)

// NewAnyLLM creates an AnyLLM for the given provider name and model.
// providerName accepts the same names as the translator backends ("ollama",
// "openai", …); opts forward to any-llm-go (base URL, API key).
func NewAnyLLM(providerName, model string, opts ...anyllmlib.Option) (*AnyLLM, error) {
	if model == "" {
		return nil, fmt.Errorf("hook: classifier model must not be empty")
	}
	backend, err := anyllm.Backend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("hook: create %q backend: %w", providerName, err)
	}
	return &AnyLLM{backend: backend, model: model}, nil
}

// Complete implements LLM.
func (a *AnyLLM) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: a.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("hook: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("hook: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.ContentString()), nil
}
