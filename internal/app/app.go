// Package app wires all yomiage subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context ends, and Shutdown tears
// everything down in order — ingress first so no new work arrives, then the
// pipeline so queued speech drains, then the providers.
//
// For testing, inject mock providers via the Providers struct and tune
// behaviour with functional options (WithDeduplicator, WithListener, …).
// When an option is not provided, New creates real implementations from the
// config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/yomiage/internal/config"
	"github.com/MrWong99/yomiage/internal/dedup"
	"github.com/MrWong99/yomiage/internal/health"
	"github.com/MrWong99/yomiage/internal/pipeline"
	"github.com/MrWong99/yomiage/internal/server"
	"github.com/MrWong99/yomiage/internal/translog"
	"github.com/MrWong99/yomiage/pkg/audio"
	"github.com/MrWong99/yomiage/pkg/provider/translate"
	"github.com/MrWong99/yomiage/pkg/provider/tts"
)

// readHeaderTimeout bounds how long the HTTP server waits for request
// headers, which keeps idle half-open connections from pinning goroutines.
const readHeaderTimeout = 10 * time.Second

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry; tests inject mocks directly.
type Providers struct {
	Translator translate.Translator
	TTS        tts.Provider
	Player     audio.Player
}

// App owns all subsystem lifetimes and runs the speech sidecar.
type App struct {
	cfg       *config.Config
	providers *Providers

	dedupe     server.Deduper
	supervisor *pipeline.Supervisor
	httpSrv    *http.Server
	listener   net.Listener
	version    string

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDeduplicator injects a deduplicator instead of creating one from config.
func WithDeduplicator(d server.Deduper) Option {
	return func(a *App) { a.dedupe = d }
}

// WithListener makes Run serve on l instead of binding the configured
// address. Tests use this with a 127.0.0.1:0 listener.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithVersion sets the version string reported by the info endpoint.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
//
// New verifies the TTS engine synchronously: a sidecar whose voice is dead
// should fail its start, not limp along producing silent jobs.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Translator == nil {
		return nil, errors.New("app: a translator provider is required")
	}
	if providers.TTS == nil {
		return nil, errors.New("app: a TTS provider is required")
	}
	if providers.Player == nil {
		return nil, errors.New("app: an audio player is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. TTS engine health ─────────────────────────────────────────────
	if err := providers.TTS.CheckHealth(ctx); err != nil {
		return nil, fmt.Errorf("app: TTS engine health check: %w (is the engine running at %s?)",
			err, cfg.TTS.BaseURL)
	}
	a.closers = append(a.closers, providers.TTS.Close)

	// ── 2. Deduplicator ──────────────────────────────────────────────────
	if a.dedupe == nil {
		a.dedupe = dedup.New(cfg.Dedup.Window(), cfg.Dedup.LockTimeout())
	}

	// ── 3. Pipeline supervisor ───────────────────────────────────────────
	var pipeOpts []pipeline.Option
	if cfg.TranslationLog.Dir != "" {
		pipeOpts = append(pipeOpts, pipeline.WithTranslationLog(translog.New(cfg.TranslationLog.Dir)))
		slog.Info("translation log enabled", "dir", cfg.TranslationLog.Dir)
	}
	a.supervisor = pipeline.New(pipeline.Config{
		TranslationQueueSize: cfg.Pipeline.TranslationQueueSize,
		TTSQueueSize:         cfg.Pipeline.TTSQueueSize,
		PlaybackQueueSize:    cfg.Pipeline.PlaybackQueueSize,
		TranslateWorkers:     cfg.Pipeline.TranslateWorkers,
		StopTimeout:          cfg.Pipeline.StopTimeout(),
	}, providers.Translator, providers.TTS, providers.Player, pipeOpts...)

	// ── 4. HTTP ingress ──────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithDeduplicator(a.dedupe),
		server.WithReadiness(
			health.Checker{Name: "pipeline", Check: func(context.Context) error {
				if st := a.supervisor.State(); st != pipeline.StateRunning {
					return fmt.Errorf("pipeline %s", st)
				}
				return nil
			}},
			health.Checker{Name: "tts_engine", Check: providers.TTS.CheckHealth},
		),
	}
	if a.version != "" {
		srvOpts = append(srvOpts, server.WithVersion(a.version))
	}
	ingress := server.New(a.supervisor, srvOpts...)

	a.httpSrv = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           ingress.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return a, nil
}

// Supervisor exposes the pipeline supervisor, primarily so main can report
// stats and tests can poll counters.
func (a *App) Supervisor() *pipeline.Supervisor {
	return a.supervisor
}

// Addr returns the address the HTTP server is (or will be) serving on. With
// an injected listener this is the listener's actual bound address.
func (a *App) Addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.httpSrv.Addr
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the pipeline workers and the HTTP server, then blocks until ctx
// is cancelled or the server fails. On cancellation Run returns ctx.Err();
// call Shutdown for the orderly teardown.
func (a *App) Run(ctx context.Context) error {
	if err := a.supervisor.Start(); err != nil {
		return fmt.Errorf("app: start pipeline: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", a.Addr())
		var err error
		if a.listener != nil {
			err = a.httpSrv.Serve(a.listener)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears the application down in dependency order: the HTTP server
// stops accepting requests, the pipeline drains its in-flight jobs (bounded
// by its own stop timeout), then the providers close. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if err := a.httpSrv.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		if a.supervisor.State() == pipeline.StateRunning {
			if err := a.supervisor.Stop(); err != nil {
				slog.Warn("pipeline stop error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
