// Package hook implements the agent-side half of the sidecar: parsing hook
// events from stdin, pulling text out of conversation transcripts, labelling
// the assistant's last message with an intent, and submitting speech requests
// to a running yomiage server.
//
// Everything here is built to fail soft. A hook runs inside somebody else's
// tool loop, so a broken transcript, an unreachable server, or a confused
// classifier must never block the caller — the binary reports the problem on
// stderr and exits zero regardless.
package hook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Event is the JSON document a hook receives on stdin. Only the fields the
// client acts on are mapped; unknown fields are ignored.
type Event struct {
	TranscriptPath string `json:"transcript_path"`
	HookEventName  string `json:"hook_event_name"`
}

// EventNotification is the hook_event_name emitted when the agent is waiting
// on the user rather than finishing a turn. Notification events carry no
// classifiable message, so the client speaks the default intent directly.
const EventNotification = "Notification"

// ReadEvent decodes a hook event from r. Empty input yields a zero Event and
// no error, matching callers that invoke hooks without a payload.
func ReadEvent(r io.Reader) (Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Event{}, fmt.Errorf("hook: read event: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Event{}, nil
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("hook: parse event: %w", err)
	}
	return ev, nil
}
