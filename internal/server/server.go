// Package server exposes the HTTP ingress for the speech pipeline.
//
// The package serves four endpoints:
//
//   - POST /translate_and_speak — validate, deduplicate and enqueue a
//     translation job; returns 202 immediately, the work happens in the
//     background pipeline.
//   - GET /health — queue sizes and lifetime counters; 503 until the
//     pipeline supervisor is running.
//   - GET / — static service info.
//   - GET /metrics — Prometheus scrape endpoint.
//
// [WithReadiness] additionally registers /healthz and /readyz probes for
// process supervisors.
//
// Responses are JSON objects with a top-level "status" field. The ingress
// never performs I/O beyond the dedup check and the queue put, so it answers
// well under 100 ms unless the translation queue itself is full.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/yomiage/internal/dedup"
	"github.com/MrWong99/yomiage/internal/health"
	"github.com/MrWong99/yomiage/internal/observe"
	"github.com/MrWong99/yomiage/internal/pipeline"
)

// defaultMaxBodyBytes bounds the request body size. Hook notifications are a
// few sentences; anything near a megabyte is not speech.
const defaultMaxBodyBytes = 1 << 20

// Pipeline is the part of the supervisor the ingress needs. Satisfied by
// [pipeline.Supervisor].
type Pipeline interface {
	Enqueue(ctx context.Context, job pipeline.TranslationJob) (int, error)
	QueueSizes() pipeline.QueueSizes
	Stats() pipeline.StatsSnapshot
	State() pipeline.State
}

var _ Pipeline = (*pipeline.Supervisor)(nil)

// Deduper classifies incoming text as fresh or repeated. Satisfied by
// [dedup.Deduplicator].
type Deduper interface {
	Check(text string) dedup.Verdict
}

var _ Deduper = (*dedup.Deduplicator)(nil)

// Server holds the ingress dependencies.
type Server struct {
	pipeline     Pipeline
	dedup        Deduper
	metrics      *observe.Metrics
	probes       *health.Handler
	version      string
	maxBodyBytes int64
}

// Option configures a [Server].
type Option func(*Server)

// WithDeduplicator replaces the default deduplicator (1 s window, 500 ms
// lock timeout).
func WithDeduplicator(d Deduper) Option {
	return func(s *Server) { s.dedup = d }
}

// WithVersion sets the version reported by GET /.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMaxBodyBytes sets the request body size limit.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithMetrics replaces the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithReadiness registers /healthz and /readyz routes; /readyz evaluates the
// given checkers on every request.
func WithReadiness(checkers ...health.Checker) Option {
	return func(s *Server) { s.probes = health.New(checkers...) }
}

// New creates a [Server] around the given pipeline.
func New(p Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:     p,
		version:      buildVersion(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.dedup == nil {
		s.dedup = dedup.New(0, 0)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the complete ingress handler: routes wrapped in panic
// recovery and the tracing/logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return observe.Middleware(s.metrics)(recoverer(mux))
}

// Register adds the ingress routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /translate_and_speak", s.handleTranslateAndSpeak)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.probes != nil {
		s.probes.Register(mux)
	}
}

// ─── Request/response bodies ──────────────────────────────────────────────────

type speakRequest struct {
	Text        string `json:"text"`
	ReturnAudio bool   `json:"return_audio"`
}

type speakResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	QueuePosition int    `json:"queue_position"`
}

type healthResponse struct {
	Status               string                 `json:"status"`
	TranslationQueueSize int                    `json:"translation_queue_size"`
	TTSQueueSize         int                    `json:"tts_queue_size"`
	PlaybackQueueSize    int                    `json:"playback_queue_size"`
	Stats                pipeline.StatsSnapshot `json:"stats"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorBody(msg string) errorResponse {
	return errorResponse{Status: "error", Message: msg}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

func (s *Server) handleTranslateAndSpeak(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.RecordIngress(ctx, "rejected")
			writeJSON(w, http.StatusRequestEntityTooLarge,
				errorBody("request body too large"))
			return
		}
		s.metrics.RecordIngress(ctx, "rejected")
		writeJSON(w, http.StatusUnprocessableEntity,
			errorBody("invalid JSON body: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.metrics.RecordIngress(ctx, "rejected")
		writeJSON(w, http.StatusUnprocessableEntity,
			errorBody("text must not be empty"))
		return
	}

	if s.pipeline.State() != pipeline.StateRunning {
		s.metrics.RecordIngress(ctx, "rejected")
		writeJSON(w, http.StatusServiceUnavailable,
			errorBody("translation and TTS pipeline not initialized (check server logs for errors)"))
		return
	}

	switch s.dedup.Check(req.Text) {
	case dedup.Busy:
		slog.Warn("dedup lock timed out, rejecting request", "text", firstRunes(req.Text, 50))
		s.metrics.RecordIngress(ctx, "busy")
		writeJSON(w, http.StatusServiceUnavailable,
			errorBody("server busy (deduplication lock timeout)"))
		return
	case dedup.Duplicate:
		slog.Info("skipping duplicate request", "text", firstRunes(req.Text, 50))
		s.metrics.RecordIngress(ctx, "duplicate")
		writeJSON(w, http.StatusOK, speakResponse{
			Status:        "skipped",
			Message:       "Duplicate request ignored",
			QueuePosition: 0,
		})
		return
	}

	job := pipeline.NewTranslationJob(req.Text, req.ReturnAudio)
	pos, err := s.pipeline.Enqueue(ctx, job)
	if err != nil {
		s.metrics.RecordIngress(ctx, "rejected")
		if errors.Is(err, pipeline.ErrNotRunning) {
			writeJSON(w, http.StatusServiceUnavailable,
				errorBody("translation and TTS pipeline not initialized (check server logs for errors)"))
			return
		}
		writeJSON(w, http.StatusServiceUnavailable,
			errorBody("could not enqueue request: "+err.Error()))
		return
	}

	slog.Info("request queued",
		"request_id", job.RequestID,
		"text", firstRunes(req.Text, 50),
		"queue_position", pos,
		"return_audio", req.ReturnAudio)
	s.metrics.RecordIngress(ctx, "queued")

	writeJSON(w, http.StatusAccepted, speakResponse{
		Status:        "queued",
		Message:       "Request queued for translation and TTS",
		QueuePosition: pos,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.pipeline.State() != pipeline.StateRunning {
		writeJSON(w, http.StatusServiceUnavailable,
			errorBody("pipeline not running"))
		return
	}

	sizes := s.pipeline.QueueSizes()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:               "ok",
		TranslationQueueSize: sizes.Translation,
		TTSQueueSize:         sizes.TTS,
		PlaybackQueueSize:    sizes.Playback,
		Stats:                s.pipeline.Stats(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "yomiage",
		"version": s.version,
		"endpoints": map[string]string{
			"translate_and_speak": "/translate_and_speak (POST)",
			"health":              "/health (GET)",
			"metrics":             "/metrics (GET)",
		},
	})
}

// ─── Plumbing ─────────────────────────────────────────────────────────────────

// recoverer turns a handler panic into a 500 instead of killing the
// connection without a response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic while serving request",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError,
					errorBody("Internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

// firstRunes truncates s to at most n runes for log output.
func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// buildVersion reports the module version when built with module info.
func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}
