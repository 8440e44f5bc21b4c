package hook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTranscript drops content into a temp JSONL file and returns its path.
func writeTranscript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write transcript: %v", err)
	}
	return path
}

const sampleTranscript = `{"type":"user","message":{"role":"user","content":"run the tests"}}
{"message":{"role":"assistant","content":[{"type":"thinking","thinking":"First I should check the test layout."},{"type":"text","text":"Let me look."}]}}
this line is not JSON and must be skipped
{"message":{"role":"assistant","content":[{"type":"tool_use","name":"bash"}]}}

{"message":{"role":"assistant","content":[{"type":"thinking","thinking":"  The tests pass; time to report.  "},{"type":"text","text":"All 12 tests pass."},{"type":"text","text":"Anything else?"}]}}
`

func TestLastThinking(t *testing.T) {
	t.Parallel()
	path := writeTranscript(t, sampleTranscript)

	got, err := LastThinking(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "The tests pass; time to report."
	if got != want {
		t.Errorf("LastThinking = %q, want %q", got, want)
	}
}

func TestLastThinking_NoneFound(t *testing.T) {
	t.Parallel()
	path := writeTranscript(t, `{"message":{"role":"assistant","content":[{"type":"text","text":"Done."}]}}`)

	got, err := LastThinking(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("LastThinking = %q, want empty", got)
	}
}

func TestLastThinking_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := LastThinking(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err == nil {
		t.Fatal("expected error for missing transcript, got nil")
	}
}

func TestLastAssistantText(t *testing.T) {
	t.Parallel()
	path := writeTranscript(t, sampleTranscript)

	got, err := LastAssistantText(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "All 12 tests pass. Anything else?"
	if got != want {
		t.Errorf("LastAssistantText = %q, want %q", got, want)
	}
}

func TestLastAssistantText_SkipsToolOnlyTurns(t *testing.T) {
	t.Parallel()
	// The newest assistant turn carries only a tool call; the text answer
	// before it is what should be spoken.
	path := writeTranscript(t, strings.Join([]string{
		`{"message":{"role":"assistant","content":[{"type":"text","text":"Checking the logs now."}]}}`,
		`{"message":{"role":"assistant","content":[{"type":"tool_use","name":"bash"}]}}`,
	}, "\n"))

	got, err := LastAssistantText(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Checking the logs now." {
		t.Errorf("LastAssistantText = %q, want %q", got, "Checking the logs now.")
	}
}

func TestLastAssistantText_LegacyStringContent(t *testing.T) {
	t.Parallel()
	path := writeTranscript(t, `{"message":{"role":"assistant","content":"plain string reply"}}`)

	got, err := LastAssistantText(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "plain string reply" {
		t.Errorf("LastAssistantText = %q, want %q", got, "plain string reply")
	}
}

func TestLastAssistantText_IgnoresUserMessages(t *testing.T) {
	t.Parallel()
	path := writeTranscript(t, strings.Join([]string{
		`{"message":{"role":"assistant","content":[{"type":"text","text":"Earlier answer."}]}}`,
		`{"message":{"role":"user","content":"a user line that must not be spoken"}}`,
	}, "\n"))

	got, err := LastAssistantText(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Earlier answer." {
		t.Errorf("LastAssistantText = %q, want %q", got, "Earlier answer.")
	}
}

func TestScanTranscript_LongLines(t *testing.T) {
	t.Parallel()
	// A thinking block well past bufio's 64 KiB default must still scan.
	big := strings.Repeat("long thought ", 20_000)
	path := writeTranscript(t,
		`{"message":{"role":"assistant","content":[{"type":"thinking","thinking":"`+big+`"}]}}`)

	got, err := LastThinking(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != strings.TrimSpace(big) {
		t.Errorf("LastThinking lost content: got %d bytes, want %d", len(got), len(strings.TrimSpace(big)))
	}
}
