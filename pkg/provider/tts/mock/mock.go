// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled synthesis results into the pipeline and to
// verify which texts reached the engine, without a running VOICEVOX. Calls
// are recorded with entry and exit timestamps so tests can assert that the
// synthesis stage never runs two jobs concurrently.
//
// Example:
//
//	p := &mock.Provider{Dir: t.TempDir()}
//	path, err := p.SynthesizeToFile(ctx, "こんにちは", "a1b2c3d4")
package mock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrWong99/yomiage/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of SynthesizeToFile.
type SynthesizeCall struct {
	// Ctx is the context passed to SynthesizeToFile.
	Ctx context.Context
	// Text is the text passed to SynthesizeToFile.
	Text string
	// RequestID is the request ID passed to SynthesizeToFile.
	RequestID string
	// Enter and Exit bracket the call. A serialised caller produces strictly
	// non-overlapping [Enter, Exit] intervals across all calls.
	Enter, Exit time.Time
}

// Provider is a mock implementation of tts.Provider. Unless Err is set it
// writes a small placeholder WAV file per call so downstream consumers can
// exercise real file handling (existence checks, deletion).
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Dir is the directory synthesized files are written to. Tests usually
	// set it to t.TempDir(). Defaults to os.TempDir() when empty.
	Dir string

	// Err, if non-nil, is returned by SynthesizeToFile and no file is written.
	Err error

	// Delay, if positive, is how long SynthesizeToFile blocks before
	// returning. The call returns ctx.Err() early when the context is
	// cancelled while waiting.
	Delay time.Duration

	// HealthErr, if non-nil, is returned by CheckHealth.
	HealthErr error

	// --- Call records (read after test) ---

	// Calls records every SynthesizeToFile invocation in order.
	Calls []SynthesizeCall

	// HealthCalls counts CheckHealth invocations.
	HealthCalls int

	// CloseCalls counts Close invocations.
	CloseCalls int

	// active tracks in-flight SynthesizeToFile calls; maxActive is the high
	// water mark, reported by MaxConcurrent.
	active    int
	maxActive int
}

// SynthesizeToFile records the call, waits out Delay, and either returns Err
// or writes <Dir>/tts_<requestID>.wav containing placeholder bytes.
func (p *Provider) SynthesizeToFile(ctx context.Context, text, requestID string) (string, error) {
	p.mu.Lock()
	idx := len(p.Calls)
	p.Calls = append(p.Calls, SynthesizeCall{Ctx: ctx, Text: text, RequestID: requestID, Enter: time.Now()})
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	dir := p.Dir
	mockErr := p.Err
	delay := p.Delay
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.Calls[idx].Exit = time.Now()
		p.active--
		p.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if mockErr != nil {
		return "", mockErr
	}

	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "tts_"+requestID+".wav")
	if err := os.WriteFile(path, []byte("RIFF mock wav: "+text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// CheckHealth records the call and returns HealthErr.
func (p *Provider) CheckHealth(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.HealthCalls++
	return p.HealthErr
}

// Close records the call and returns nil.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCalls++
	return nil
}

// CallCount returns the number of recorded SynthesizeToFile calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// MaxConcurrent returns the highest number of SynthesizeToFile calls that
// were ever in flight at the same time.
func (p *Provider) MaxConcurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

// Reset clears all recorded calls and counters. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
	p.HealthCalls = 0
	p.CloseCalls = 0
	p.maxActive = 0
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
