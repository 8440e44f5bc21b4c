package hook

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Transcript lines holding long thinking blocks easily exceed bufio's 64 KiB
// default, so the scanner gets a much larger ceiling.
const maxTranscriptLine = 10 << 20

// transcriptLine is one JSONL record of a conversation transcript. Only the
// message envelope is mapped; records without one (summaries, tool results)
// decode to a nil Message and are skipped.
type transcriptLine struct {
	Message *transcriptMessage `json:"message"`
}

// transcriptMessage keeps Content raw because transcripts carry it in two
// shapes: a list of typed blocks, or a bare string in older records.
type transcriptMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// contentBlock is one element of a block-list Content.
type contentBlock struct {
	Type     string `json:"type"`
	Thinking string `json:"thinking"`
	Text     string `json:"text"`
}

// LastThinking returns the newest thinking block in the transcript at path,
// trimmed. Lines that fail to parse are skipped rather than aborting the
// scan; transcripts in the wild interleave foreign records. The empty string
// means the transcript holds no thinking content.
func LastThinking(path string) (string, error) {
	var last string
	err := scanTranscript(path, func(line transcriptLine) {
		if t := line.thinking(); t != "" {
			last = t
		}
	})
	return last, err
}

// LastAssistantText returns the text of the newest assistant message that has
// any, joining multiple text blocks with single spaces. Assistant turns that
// carry only tool calls are passed over.
func LastAssistantText(path string) (string, error) {
	var last string
	err := scanTranscript(path, func(line transcriptLine) {
		if t := line.assistantText(); t != "" {
			last = t
		}
	})
	return last, err
}

// scanTranscript streams the JSONL file at path through fn, one parsed line
// at a time. Blank and malformed lines are dropped silently.
func scanTranscript(path string, fn func(transcriptLine)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("hook: open transcript: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxTranscriptLine)
	for sc.Scan() {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line transcriptLine
		if err := json.Unmarshal(raw, &line); err != nil {
			continue
		}
		fn(line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("hook: scan transcript: %w", err)
	}
	return nil
}

// thinking returns the first thinking block of the record, or "". Role is
// deliberately not checked: thinking only ever appears on assistant turns,
// and transcripts from older agent versions label those inconsistently.
func (l transcriptLine) thinking() string {
	for _, b := range l.blocks() {
		if b.Type == "thinking" {
			if t := strings.TrimSpace(b.Thinking); t != "" {
				return t
			}
		}
	}
	return ""
}

// assistantText returns the joined text blocks of an assistant record, or ""
// when the record is not an assistant turn or has no text content.
func (l transcriptLine) assistantText() string {
	if l.Message == nil || l.Message.Role != "assistant" {
		return ""
	}

	if blocks := l.blocks(); blocks != nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.TrimSpace(strings.Join(parts, " "))
	}

	// Legacy shape: content is a plain string.
	var s string
	if err := json.Unmarshal(l.Message.Content, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// blocks decodes the block-list form of Content, returning nil when the
// content is absent or a different shape.
func (l transcriptLine) blocks() []contentBlock {
	if l.Message == nil || len(l.Message.Content) == 0 {
		return nil
	}
	var blocks []contentBlock
	if err := json.Unmarshal(l.Message.Content, &blocks); err != nil {
		return nil
	}
	return blocks
}
