package translog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// readRecords parses every JSONL record in the given file.
func readRecords(t *testing.T, path string) []record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening log file: %v", err)
	}
	defer f.Close()

	var records []record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("parsing line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning log file: %v", err)
	}
	return records
}

func TestLog(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	err := l.Log(Entry{
		SourceText:     "Build complete",
		TranslatedText: "ビルドが完了しました",
		Model:          "qwen3:8b",
	})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}

	path := filepath.Join(dir, "translation_2026-03-14.jsonl")
	records := readRecords(t, path)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.SourceText != "Build complete" {
		t.Errorf("SourceText = %q", rec.SourceText)
	}
	if rec.TranslatedText != "ビルドが完了しました" {
		t.Errorf("TranslatedText = %q", rec.TranslatedText)
	}
	if rec.Model != "qwen3:8b" {
		t.Errorf("Model = %q", rec.Model)
	}
	if !rec.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, fixed)
	}
}

func TestLogAppends(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	for _, text := range []string{"first", "second", "third"} {
		if err := l.Log(Entry{SourceText: text}); err != nil {
			t.Fatalf("Log(%q): %v", text, err)
		}
	}

	records := readRecords(t, filepath.Join(dir, "translation_2026-03-14.jsonl"))
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[1].SourceText != "second" {
		t.Errorf("records[1].SourceText = %q, want entries in write order", records[1].SourceText)
	}
}

func TestLogDayRollover(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	day := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return day }
	if err := l.Log(Entry{SourceText: "before midnight"}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	day = day.Add(2 * time.Minute)
	if err := l.Log(Entry{SourceText: "after midnight"}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	first := readRecords(t, filepath.Join(dir, "translation_2026-03-14.jsonl"))
	second := readRecords(t, filepath.Join(dir, "translation_2026-03-15.jsonl"))
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("records split %d/%d across days, want 1/1", len(first), len(second))
	}
}

func TestLogCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	l := New(dir)

	if err := l.Log(Entry{SourceText: "hello"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log directory was not created: %v", err)
	}
}

func TestFileName(t *testing.T) {
	day := time.Date(2026, 12, 3, 4, 5, 6, 0, time.UTC)
	if got, want := fileName(day), "translation_2026-12-03.jsonl"; got != want {
		t.Errorf("fileName = %q, want %q", got, want)
	}
}
