package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/yomiage/internal/jptext"
	"github.com/MrWong99/yomiage/internal/resilience"
	"github.com/MrWong99/yomiage/internal/translog"
	"github.com/MrWong99/yomiage/pkg/provider/translate"
)

// ─── Stage T: translation ─────────────────────────────────────────────────────

func (s *Supervisor) translationWorker(ctx context.Context, id int) {
	defer s.wg.Done()
	log := slog.With("stage", "translation", "worker", id)
	log.Debug("worker started")
	for {
		// Prefer stopping over racing the queue for one more job.
		select {
		case <-s.stopCh:
			log.Debug("worker stopped")
			return
		default:
		}
		select {
		case <-s.stopCh:
			log.Debug("worker stopped")
			return
		case <-ctx.Done():
			return
		case job := <-s.translationQ:
			s.metrics.AddQueueDepth(ctx, "translation", -1)
			s.guard(&s.stats.translationFailed, "translation", job.RequestID, func() {
				s.processTranslation(ctx, job)
			})
		}
	}
}

func (s *Supervisor) processTranslation(ctx context.Context, job TranslationJob) {
	japanese, err := s.translateJob(ctx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown pulled the plug mid-call; not a job failure.
			slog.Debug("translation cancelled, shutting down",
				"request_id", job.RequestID)
			return
		}
		s.stats.translationFailed.Add(1)
		s.metrics.RecordJob(ctx, "translation", "failed")
		switch {
		case errors.Is(err, translate.ErrInvalidInput):
			slog.Warn("dropping untranslatable text",
				"request_id", job.RequestID, "reason", err)
		case errors.Is(err, resilience.ErrCircuitOpen):
			slog.Warn("translation skipped, circuit open",
				"request_id", job.RequestID)
		case isTimeout(err):
			slog.Warn("translation timed out", "request_id", job.RequestID)
		default:
			slog.Error("translation failed",
				"request_id", job.RequestID, "error", err)
		}
		return
	}

	next := SynthesisJob{
		RequestID:    job.RequestID,
		JapaneseText: japanese,
		ReturnAudio:  job.ReturnAudio,
	}
	select {
	case s.synthesisQ <- next:
		s.metrics.AddQueueDepth(ctx, "tts", 1)
		s.stats.translationProcessed.Add(1)
		s.metrics.RecordJob(ctx, "translation", "processed")
	case <-ctx.Done():
		slog.Warn("dropping translated job, shutting down",
			"request_id", job.RequestID)
	}
}

// translateJob produces the Japanese text for a job: the source itself for
// pre-translated input, otherwise the normalized translator output. The raw
// output is persisted to the translation log before normalization so the log
// reflects what the model actually said.
func (s *Supervisor) translateJob(ctx context.Context, job TranslationJob) (string, error) {
	if job.PreTranslated {
		slog.Debug("pre-translated text, passing through",
			"request_id", job.RequestID)
		return job.SourceText, nil
	}

	start := time.Now()
	var raw string
	err := s.breaker.Execute(func() error {
		var terr error
		raw, terr = s.translator.Translate(ctx, job.SourceText)
		return terr
	})
	if err != nil {
		return "", err
	}
	s.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds())

	if s.translog != nil {
		if lerr := s.translog.Log(translog.Entry{
			SourceText:     job.SourceText,
			TranslatedText: raw,
			Model:          s.translator.Model(),
		}); lerr != nil {
			slog.Warn("translation log write failed", "error", lerr)
		}
	}

	japanese := jptext.Normalize(raw)
	if strings.TrimSpace(japanese) == "" {
		return "", fmt.Errorf("pipeline: translation produced no usable text: %w",
			translate.ErrInvalidInput)
	}
	return japanese, nil
}

// ─── Stage S: synthesis ───────────────────────────────────────────────────────

func (s *Supervisor) synthesisWorker(ctx context.Context) {
	defer s.wg.Done()
	log := slog.With("stage", "tts")
	log.Debug("worker started")
	for {
		select {
		case <-s.stopCh:
			log.Debug("worker stopped")
			return
		default:
		}
		select {
		case <-s.stopCh:
			log.Debug("worker stopped")
			return
		case <-ctx.Done():
			return
		case job := <-s.synthesisQ:
			s.metrics.AddQueueDepth(ctx, "tts", -1)
			s.guard(&s.stats.ttsFailed, "tts", job.RequestID, func() {
				s.processSynthesis(ctx, job)
			})
		}
	}
}

func (s *Supervisor) processSynthesis(ctx context.Context, job SynthesisJob) {
	// The gate is the hard guarantee that the engine never sees two
	// concurrent requests, whatever the worker count.
	if err := s.synthGate.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.synthGate.Release(1)

	start := time.Now()
	wavPath, err := s.tts.SynthesizeToFile(ctx, job.JapaneseText, job.RequestID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Debug("synthesis cancelled, shutting down",
				"request_id", job.RequestID)
			return
		}
		s.stats.ttsFailed.Add(1)
		s.metrics.RecordJob(ctx, "tts", "failed")
		if isTimeout(err) {
			slog.Warn("synthesis timed out", "request_id", job.RequestID)
		} else {
			slog.Error("synthesis failed",
				"request_id", job.RequestID, "error", err)
		}
		return
	}
	s.metrics.SynthesizeDuration.Record(ctx, time.Since(start).Seconds())

	// Let the engine release its resources before the next job.
	_ = s.pace.Wait(ctx)

	s.stats.ttsProcessed.Add(1)
	s.metrics.RecordJob(ctx, "tts", "processed")

	if job.ReturnAudio {
		slog.Info("audio retained for caller",
			"request_id", job.RequestID, "path", wavPath)
		return
	}

	select {
	case s.playbackQ <- PlaybackJob{
		RequestID:       job.RequestID,
		WAVPath:         wavPath,
		DeleteAfterPlay: true,
	}:
		s.metrics.AddQueueDepth(ctx, "playback", 1)
	case <-ctx.Done():
		slog.Warn("dropping synthesised job, shutting down",
			"request_id", job.RequestID)
	}
}

// ─── Stage P: playback ────────────────────────────────────────────────────────

func (s *Supervisor) playbackWorker(ctx context.Context) {
	defer s.wg.Done()
	log := slog.With("stage", "playback")
	log.Debug("worker started")
	for {
		select {
		case <-s.stopCh:
			log.Debug("worker stopped")
			return
		default:
		}
		select {
		case <-s.stopCh:
			log.Debug("worker stopped")
			return
		case <-ctx.Done():
			return
		case job := <-s.playbackQ:
			s.metrics.AddQueueDepth(ctx, "playback", -1)
			s.guard(&s.stats.playbackFailed, "playback", job.RequestID, func() {
				s.processPlayback(ctx, job)
			})
		}
	}
}

func (s *Supervisor) processPlayback(ctx context.Context, job PlaybackJob) {
	start := time.Now()
	if err := s.player.Play(ctx, job.WAVPath); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Shutdown interrupted playback; not the job's fault.
			slog.Debug("playback interrupted", "request_id", job.RequestID)
			return
		}
		s.stats.playbackFailed.Add(1)
		s.metrics.RecordJob(ctx, "playback", "failed")
		slog.Error("playback failed",
			"request_id", job.RequestID, "error", err)
		return
	}
	s.metrics.PlaybackDuration.Record(ctx, time.Since(start).Seconds())

	if job.DeleteAfterPlay {
		if err := os.Remove(job.WAVPath); err != nil {
			if os.IsNotExist(err) {
				slog.Warn("audio file already missing",
					"request_id", job.RequestID, "path", job.WAVPath)
			} else {
				slog.Warn("could not delete audio file",
					"request_id", job.RequestID, "path", job.WAVPath, "error", err)
			}
		}
	}

	s.stats.playbackProcessed.Add(1)
	s.metrics.RecordJob(ctx, "playback", "processed")
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

// guard runs fn, converting a panic into a failed job instead of a dead
// worker. A single job must never take its stage down with it.
func (s *Supervisor) guard(failed *atomic.Int64, stage, requestID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			failed.Add(1)
			slog.Error("panic while processing job",
				"stage", stage,
				"request_id", requestID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}

// isTimeout reports whether err is a deadline or client timeout, which gets
// a concise warning instead of a full error log.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err)
}
