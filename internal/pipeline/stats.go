package pipeline

import "sync/atomic"

// Stats holds the six monotone pipeline counters. Each counter is written
// only by its stage's workers; reads may happen from any goroutine.
type Stats struct {
	translationProcessed atomic.Int64
	translationFailed    atomic.Int64
	ttsProcessed         atomic.Int64
	ttsFailed            atomic.Int64
	playbackProcessed    atomic.Int64
	playbackFailed       atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters, shaped for the
// /health response.
type StatsSnapshot struct {
	TranslationProcessed int64 `json:"translation_processed"`
	TranslationFailed    int64 `json:"translation_failed"`
	TTSProcessed         int64 `json:"tts_processed"`
	TTSFailed            int64 `json:"tts_failed"`
	PlaybackProcessed    int64 `json:"playback_processed"`
	PlaybackFailed       int64 `json:"playback_failed"`
}

// Snapshot returns the current counter values. The six loads are not
// mutually atomic, which is fine for reporting.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TranslationProcessed: s.translationProcessed.Load(),
		TranslationFailed:    s.translationFailed.Load(),
		TTSProcessed:         s.ttsProcessed.Load(),
		TTSFailed:            s.ttsFailed.Load(),
		PlaybackProcessed:    s.playbackProcessed.Load(),
		PlaybackFailed:       s.playbackFailed.Load(),
	}
}
