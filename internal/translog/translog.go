// Package translog persists translation results as append-only JSON lines,
// one file per day. The log feeds offline review of translation quality;
// the pipeline treats writes as best-effort and never fails a job over them.
package translog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is a single translation result to be logged. TranslatedText carries
// the raw provider output, before any reading normalization is applied.
type Entry struct {
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
	Model          string `json:"model"`
}

// record is the on-disk shape of an entry.
type record struct {
	SourceText     string    `json:"source_text"`
	TranslatedText string    `json:"translated_text"`
	Model          string    `json:"model"`
	Timestamp      time.Time `json:"timestamp"`
}

// Logger writes translation records into a directory, one
// translation_YYYY-MM-DD.jsonl file per UTC day.
// Thread-safe for concurrent use.
type Logger struct {
	mu  sync.Mutex
	dir string

	// now is replaced in tests to exercise day rollover.
	now func() time.Time
}

// New creates a Logger that writes into dir. The directory and the daily
// files are created on first use.
func New(dir string) *Logger {
	return &Logger{dir: dir, now: time.Now}
}

// Log appends entry to the current day's file. Files are opened per write,
// so the day rollover needs no timer: the date in the file name simply
// changes with the clock.
func (l *Logger) Log(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	data, err := json.Marshal(record{
		SourceText:     entry.SourceText,
		TranslatedText: entry.TranslatedText,
		Model:          entry.Model,
		Timestamp:      now,
	})
	if err != nil {
		return fmt.Errorf("translog: marshal: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("translog: create dir: %w", err)
	}

	path := filepath.Join(l.dir, fileName(now))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("translog: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("translog: write: %w", err)
	}
	return nil
}

// fileName returns the daily file name for the given instant.
func fileName(day time.Time) string {
	return "translation_" + day.Format("2006-01-02") + ".jsonl"
}
