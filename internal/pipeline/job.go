package pipeline

import (
	"strings"

	"github.com/google/uuid"
)

// Pre-translated text is wrapped in these corner brackets. Text carrying
// them is already Japanese; the translation stage passes it through
// byte-identical, markers included.
const (
	preTranslatedOpen  = "『"
	preTranslatedClose = "』"
)

// TranslationJob is the unit of work entering the pipeline. One job is
// created per accepted ingress request.
type TranslationJob struct {
	// RequestID is a short identifier carried through every stage and into
	// the synthesised file name.
	RequestID string

	// SourceText is the text as received, already trimmed and non-empty.
	SourceText string

	// PreTranslated marks text that skips the translation stage.
	PreTranslated bool

	// ReturnAudio terminates the job after synthesis, leaving the WAV on
	// disk for the caller instead of playing it.
	ReturnAudio bool
}

// SynthesisJob carries translated text to the synthesis stage.
type SynthesisJob struct {
	RequestID    string
	JapaneseText string
	ReturnAudio  bool
}

// PlaybackJob carries a synthesised WAV file to the playback stage. The job
// owns the file: once DeleteAfterPlay is set, deleting it after playback is
// the playback worker's responsibility.
type PlaybackJob struct {
	RequestID       string
	WAVPath         string
	DeleteAfterPlay bool
}

// NewTranslationJob builds a job for the given source text, assigning a
// fresh request ID and detecting the pre-translated markers.
func NewTranslationJob(text string, returnAudio bool) TranslationJob {
	return TranslationJob{
		RequestID:     uuid.NewString()[:8],
		SourceText:    text,
		PreTranslated: IsPreTranslated(text),
		ReturnAudio:   returnAudio,
	}
}

// IsPreTranslated reports whether text both starts with 『 and ends with 』.
func IsPreTranslated(text string) bool {
	return strings.HasPrefix(text, preTranslatedOpen) &&
		strings.HasSuffix(text, preTranslatedClose)
}
