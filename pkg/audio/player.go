// Package audio provides local playback of synthesised speech.
//
// The single abstraction is [Player], which plays a WAV file from disk and
// blocks until playback finishes. The default implementation, [ExecPlayer],
// shells out to the platform's native player so the process needs no audio
// bindings of its own.
//
// This package lives under pkg/ because alternative playback backends
// (e.g. streaming to a remote sink instead of the local device) are expected
// to implement [Player].
package audio

import "context"

// Player plays a synthesised WAV file through the local audio device.
//
// Implementations must be safe for concurrent use. The playback worker calls
// Play from a single goroutine, but tests and health probes may not.
type Player interface {
	// Play blocks until the file at wavPath has finished playing or ctx is
	// cancelled. Playback is best-effort: a player process that exits
	// non-zero is not an error, failing to launch one at all is.
	Play(ctx context.Context, wavPath string) error
}
