// Package pipeline implements the asynchronous translate → synthesize → play
// pipeline behind the HTTP ingress.
//
// # Architecture
//
//  1. Ingress enqueues a [TranslationJob] via [Supervisor.Enqueue].
//  2. Translation workers turn source text into normalized Japanese (or pass
//     pre-translated text through untouched) and hand off a [SynthesisJob].
//  3. The single synthesis worker renders the text to a WAV file through the
//     TTS provider. Synthesis is strictly serialized — the engine is assumed
//     to be GPU-backed and concurrent use exhausts its memory — and paced
//     with a short cooldown between jobs.
//  4. The playback worker plays the file through the local audio device and
//     deletes it afterwards.
//
// The three stage queues are bounded; a full queue blocks the producer
// (backpressure) rather than dropping work. Failures never cross job
// boundaries: a failed job is counted, logged and dropped, never retried.
//
// A [Supervisor] moves through Idle → Starting → Running → Stopping →
// Stopped, in that order, exactly once. Jobs are accepted only while Running.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/MrWong99/yomiage/internal/observe"
	"github.com/MrWong99/yomiage/internal/resilience"
	"github.com/MrWong99/yomiage/internal/translog"
	"github.com/MrWong99/yomiage/pkg/audio"
	"github.com/MrWong99/yomiage/pkg/provider/translate"
	"github.com/MrWong99/yomiage/pkg/provider/tts"
)

// ErrNotRunning is returned by [Supervisor.Enqueue] when the pipeline is not
// in the Running state.
var ErrNotRunning = errors.New("pipeline: not running")

const (
	// defaultQueueSize bounds each stage queue when the config leaves the
	// capacity unset.
	defaultQueueSize = 100

	// defaultStopTimeout is how long Stop waits for workers to finish their
	// current jobs before cancelling them.
	defaultStopTimeout = 10 * time.Second

	// synthCooldown is the pause enforced between successful synthesis calls
	// so the engine can release its resources before the next job.
	synthCooldown = 100 * time.Millisecond
)

// State represents the lifecycle phase of a [Supervisor]. Transitions are
// monotonic; a stopped supervisor cannot be restarted.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds tuning knobs for a [Supervisor]. Zero values are replaced
// with defaults.
type Config struct {
	// TranslationQueueSize, TTSQueueSize and PlaybackQueueSize bound the
	// three stage queues. Default: 100 each.
	TranslationQueueSize int
	TTSQueueSize         int
	PlaybackQueueSize    int

	// TranslateWorkers is the translation stage's concurrency. Default: 1.
	// Synthesis and playback are pinned to one worker each: the synthesis
	// engine cannot take concurrent load, and overlapping playback would
	// garble the audio output.
	TranslateWorkers int

	// StopTimeout bounds how long Stop waits for in-flight jobs. Default: 10s.
	StopTimeout time.Duration
}

// withDefaults returns cfg with zero values filled in.
func (c Config) withDefaults() Config {
	if c.TranslationQueueSize <= 0 {
		c.TranslationQueueSize = defaultQueueSize
	}
	if c.TTSQueueSize <= 0 {
		c.TTSQueueSize = defaultQueueSize
	}
	if c.PlaybackQueueSize <= 0 {
		c.PlaybackQueueSize = defaultQueueSize
	}
	if c.TranslateWorkers <= 0 {
		c.TranslateWorkers = 1
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	return c
}

// QueueSizes reports how many jobs are currently waiting in each stage queue.
type QueueSizes struct {
	Translation int `json:"translation_queue_size"`
	TTS         int `json:"tts_queue_size"`
	Playback    int `json:"playback_queue_size"`
}

// Supervisor owns the stage queues and worker goroutines.
type Supervisor struct {
	cfg        Config
	translator translate.Translator
	tts        tts.Provider
	player     audio.Player

	breaker  *resilience.CircuitBreaker
	translog *translog.Logger
	metrics  *observe.Metrics

	translationQ chan TranslationJob
	synthesisQ   chan SynthesisJob
	playbackQ    chan PlaybackJob

	// synthGate serializes the synthesis stage, pace spreads its successes
	// at least synthCooldown apart.
	synthGate *semaphore.Weighted
	pace      *rate.Limiter

	stats Stats

	state  atomic.Int32
	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option is a functional option for configuring a Supervisor during
// construction.
type Option func(*Supervisor)

// WithCircuitBreaker replaces the default breaker protecting the translator.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(s *Supervisor) { s.breaker = cb }
}

// WithTranslationLog enables persistence of raw translation results.
func WithTranslationLog(l *translog.Logger) Option {
	return func(s *Supervisor) { s.translog = l }
}

// WithMetrics replaces the default metrics instance. Tests use this to
// observe instruments through a manual reader.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// New constructs a Supervisor wired to the given collaborators. The
// translator handles stage T, the TTS provider stage S and the player
// stage P. Workers do not run until [Supervisor.Start] is called.
func New(cfg Config, translator translate.Translator, ttsProvider tts.Provider, player audio.Player, opts ...Option) *Supervisor {
	cfg = cfg.withDefaults()
	s := &Supervisor{
		cfg:          cfg,
		translator:   translator,
		tts:          ttsProvider,
		player:       player,
		translationQ: make(chan TranslationJob, cfg.TranslationQueueSize),
		synthesisQ:   make(chan SynthesisJob, cfg.TTSQueueSize),
		playbackQ:    make(chan PlaybackJob, cfg.PlaybackQueueSize),
		synthGate:    semaphore.NewWeighted(1),
		pace:         rate.NewLimiter(rate.Every(synthCooldown), 1),
	}
	for _, o := range opts {
		o(s)
	}
	if s.breaker == nil {
		s.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "translator",
			// Rejected input is the job's fault, not the backend's.
			IsFailure: func(err error) bool {
				return err != nil && !errors.Is(err, translate.ErrInvalidInput)
			},
		})
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// ─── Lifecycle ────────────────────────────────────────────────────────────────

// Start launches the stage workers and transitions the supervisor to
// Running. It returns an error when called in any state but Idle.
func (s *Supervisor) Start() error {
	if !s.transition(StateIdle, StateStarting) {
		return fmt.Errorf("pipeline: cannot start from state %s", s.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopCh = make(chan struct{})

	for i := 0; i < s.cfg.TranslateWorkers; i++ {
		s.wg.Add(1)
		go s.translationWorker(ctx, i)
	}
	s.wg.Add(1)
	go s.synthesisWorker(ctx)
	s.wg.Add(1)
	go s.playbackWorker(ctx)

	s.state.Store(int32(StateRunning))
	slog.Info("pipeline started",
		"translate_workers", s.cfg.TranslateWorkers,
		"translation_queue", s.cfg.TranslationQueueSize,
		"tts_queue", s.cfg.TTSQueueSize,
		"playback_queue", s.cfg.PlaybackQueueSize,
	)
	return nil
}

// Stop transitions the supervisor to Stopping, waits up to the configured
// stop timeout for workers to finish their current jobs, then cancels
// whatever is still in flight. Jobs left in the queues are abandoned; WAV
// files still queued for playback stay in the temp directory. The final
// counter values are logged before Stop returns.
func (s *Supervisor) Stop() error {
	if !s.transition(StateRunning, StateStopping) {
		return fmt.Errorf("pipeline: cannot stop from state %s", s.State())
	}

	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.StopTimeout):
		slog.Warn("pipeline workers still busy at stop timeout, cancelling",
			"timeout", s.cfg.StopTimeout)
		s.cancel()
		<-done
	}
	s.cancel()

	s.state.Store(int32(StateStopped))

	snap := s.stats.Snapshot()
	slog.Info("pipeline stopped",
		"translation_processed", snap.TranslationProcessed,
		"translation_failed", snap.TranslationFailed,
		"tts_processed", snap.TTSProcessed,
		"tts_failed", snap.TTSFailed,
		"playback_processed", snap.PlaybackProcessed,
		"playback_failed", snap.PlaybackFailed,
	)
	return nil
}

// State returns the supervisor's current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// transition atomically moves from one state to another, reporting whether
// the move happened.
func (s *Supervisor) transition(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// ─── Ingress ──────────────────────────────────────────────────────────────────

// Enqueue submits a job to the translation queue and returns the queue size
// after the put. When the queue is full, Enqueue blocks until space frees up
// or ctx is cancelled. Returns [ErrNotRunning] outside the Running state.
func (s *Supervisor) Enqueue(ctx context.Context, job TranslationJob) (int, error) {
	if s.State() != StateRunning {
		return 0, ErrNotRunning
	}
	select {
	case s.translationQ <- job:
		s.metrics.AddQueueDepth(ctx, "translation", 1)
		return len(s.translationQ), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// QueueSizes reports the current depth of each stage queue.
func (s *Supervisor) QueueSizes() QueueSizes {
	return QueueSizes{
		Translation: len(s.translationQ),
		TTS:         len(s.synthesisQ),
		Playback:    len(s.playbackQ),
	}
}

// Stats returns a snapshot of the pipeline counters.
func (s *Supervisor) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}
