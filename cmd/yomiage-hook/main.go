// Command yomiage-hook bridges agent lifecycle hooks to a running yomiage
// server.
//
// The binary reads a hook event JSON from stdin and, depending on -mode,
// either speaks the agent's latest thinking block aloud (think) or announces
// what the agent is waiting for (notify). It is designed to sit in another
// tool's critical path: whatever goes wrong — missing transcript, dead
// server, confused classifier — diagnostics go to stderr and the process
// exits 0, so the hook can never break its caller.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/yomiage/internal/hook"
)

// classifyTimeout bounds the notify-mode LLM call. Local models can take a
// while on first load, so this is generous compared to the speak timeout.
const classifyTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional and must load before flag defaults are computed.
	_ = godotenv.Load()

	serverURL := flag.String("server", "http://127.0.0.1:8765", "base URL of the yomiage server")
	mode := flag.String("mode", "think", `hook mode: "think" speaks the last thinking block, "notify" announces what the agent is waiting for`)
	statePath := flag.String("state", hook.DefaultStateFile, "state file that suppresses re-speaking an unchanged thinking block")
	timeout := flag.Duration("timeout", 5*time.Second, "timeout for calls to the yomiage server")
	llmProvider := flag.String("llm-provider", "ollama", "LLM backend used for notify-mode intent classification")
	llmModel := flag.String("llm-model", envOr("OLLAMA_MODEL", "gemma3n:e4b"), "model used for notify-mode intent classification")
	llmBaseURL := flag.String("llm-base-url", envOr("OLLAMA_BASE_URL", ""), "override the classifier backend's base URL")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ev, err := hook.ReadEvent(os.Stdin)
	if err != nil {
		// A mangled event is not fatal: notify mode still has a sensible
		// default and think mode simply finds nothing to speak.
		slog.Warn("cannot parse hook event, proceeding with empty event", "err", err)
	}

	client := hook.NewClient(*serverURL, hook.WithTimeout(*timeout))

	switch *mode {
	case "think":
		runThink(ev, client, *statePath)
	case "notify":
		runNotify(ev, client, *llmProvider, *llmModel, *llmBaseURL)
	default:
		slog.Error("unknown mode", "mode", *mode)
	}
	return 0
}

// runThink speaks the latest thinking block from the transcript, once.
// Repeated hook invocations against an unchanged transcript stay silent via
// the state file.
func runThink(ev hook.Event, client *hook.Client, statePath string) {
	if ev.TranscriptPath == "" {
		slog.Debug("event has no transcript path, nothing to speak")
		return
	}

	thinking, err := hook.LastThinking(ev.TranscriptPath)
	if err != nil {
		slog.Error("cannot read transcript", "err", err, "path", ev.TranscriptPath)
		return
	}
	if thinking == "" {
		slog.Debug("transcript has no thinking block")
		return
	}

	state := hook.NewState(statePath)
	if state.Seen(thinking) {
		slog.Debug("thinking unchanged since last run")
		return
	}

	if err := client.Speak(context.Background(), thinking); err != nil {
		slog.Error("speak failed", "err", err)
	}
	// Remember the block even after a failed submission: retrying it on the
	// next hook would speak stale thoughts once the server comes back.
	if err := state.Remember(thinking); err != nil {
		slog.Warn("cannot persist state", "err", err, "path", statePath)
	}
}

// runNotify announces what the agent is waiting for. The announcement phrases
// are pre-translated Japanese, so the server speaks them as-is.
func runNotify(ev hook.Event, client *hook.Client, provider, model, baseURL string) {
	intent := notifyIntent(ev, provider, model, baseURL)

	if err := client.Speak(context.Background(), intent.Announcement()); err != nil {
		slog.Error("speak failed", "err", err, "intent", intent)
	}
}

// notifyIntent decides which announcement to make. Every failure path falls
// back to the default intent rather than staying silent: a wrong "waiting for
// approval" beats no notification at all.
func notifyIntent(ev hook.Event, provider, model, baseURL string) hook.Intent {
	// Notification events fire when the agent requests permission; there is
	// no message worth classifying.
	if ev.HookEventName == hook.EventNotification {
		return hook.DefaultIntent
	}
	if ev.TranscriptPath == "" {
		return hook.DefaultIntent
	}

	message, err := hook.LastAssistantText(ev.TranscriptPath)
	if err != nil {
		slog.Error("cannot read transcript", "err", err, "path", ev.TranscriptPath)
		return hook.DefaultIntent
	}
	if message == "" {
		return hook.DefaultIntent
	}

	var opts []anyllmlib.Option
	if baseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(baseURL))
	}
	llm, err := hook.NewAnyLLM(provider, model, opts...)
	if err != nil {
		slog.Warn("classifier unavailable, using default intent", "err", err)
		return hook.DefaultIntent
	}

	ctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
	defer cancel()
	return hook.NewClassifier(llm).Classify(ctx, message)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
