// Package mock provides an in-memory [audio.Player] for use in unit tests.
//
// The mock is safe for concurrent use. It records every Play call so tests
// can assert on order and arguments, and it exposes exported fields the test
// can set to control behaviour.
//
// Typical usage:
//
//	player := &mock.Player{}
//	worker := pipeline.New(..., player)
//	...
//	if player.CallCount() != 1 {
//	    t.Errorf("played %d files, want 1", player.CallCount())
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/yomiage/pkg/audio"
)

// PlayCall records the arguments of a single Play invocation.
type PlayCall struct {
	Ctx  context.Context
	Path string
}

// Player is a configurable [audio.Player] double. The zero value plays
// every file instantly and successfully.
type Player struct {
	mu sync.Mutex

	// Err, when non-nil, is returned from every Play call.
	Err error

	// Delay stalls each Play call for the given duration, honouring
	// context cancellation.
	Delay time.Duration

	// Calls records every Play invocation in order.
	Calls []PlayCall
}

var _ audio.Player = (*Player)(nil)

// Play records the call, waits out Delay and returns Err.
func (p *Player) Play(ctx context.Context, wavPath string) error {
	p.mu.Lock()
	p.Calls = append(p.Calls, PlayCall{Ctx: ctx, Path: wavPath})
	err := p.Err
	delay := p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// CallCount reports how many times Play has been invoked.
func (p *Player) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Paths returns the WAV paths played so far, in order.
func (p *Player) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		paths[i] = c.Path
	}
	return paths
}

// Reset clears all recorded calls.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
