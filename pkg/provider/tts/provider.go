// Package tts defines the Provider interface for file-producing Text-to-Speech
// backends.
//
// A TTS provider wraps a speech synthesis engine (e.g., a local VOICEVOX
// server) and renders Japanese text into complete WAV files on disk. Synthesis
// is a batch operation: one call produces one file, which the playback stage
// consumes and usually deletes afterwards. This differs from streaming TTS
// designs in that latency is dominated by the engine itself, so the pipeline
// serialises synthesis calls rather than pipelining fragments.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any file-producing TTS backend.
type Provider interface {
	// SynthesizeToFile renders text into a WAV file on disk and returns the
	// path of the written file. requestID is incorporated into the file name,
	// so callers must keep it unique per job to avoid collisions.
	//
	// Implementations must honour ctx cancellation and deadlines. Timeouts
	// surface as errors satisfying errors.Is(err, context.DeadlineExceeded)
	// or carrying a net.Error with Timeout() == true in their chain, so
	// callers can classify slow-engine failures separately from hard errors.
	SynthesizeToFile(ctx context.Context, text, requestID string) (string, error)

	// CheckHealth verifies that the backing engine is reachable and ready to
	// accept synthesis requests. Called once at startup (a failure there is
	// fatal) and available for later probes.
	CheckHealth(ctx context.Context) error

	// Close releases resources held by the provider (idle HTTP connections,
	// sessions). The provider must not be used after Close returns.
	Close() error
}

// SpeakerLister is implemented by providers whose engine exposes a voice
// catalogue. Optional; callers discover it via type assertion.
type SpeakerLister interface {
	// ListSpeakers returns the engine's available speakers and their styles.
	ListSpeakers(ctx context.Context) ([]Speaker, error)
}
