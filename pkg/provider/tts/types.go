package tts

// Speaker describes one voice available from a TTS engine. A speaker may
// offer several styles (normal, joyful, whispered, ...), each addressed by
// its own numeric ID at synthesis time. The JSON tags match the VOICEVOX
// /speakers response so the catalogue can be decoded directly.
type Speaker struct {
	// Name is the human-readable speaker name (e.g., "ずんだもん").
	Name string `json:"name"`

	// UUID is the engine-assigned stable identifier for the speaker.
	UUID string `json:"speaker_uuid"`

	// Styles lists the selectable voice styles for this speaker.
	Styles []SpeakerStyle `json:"styles"`
}

// SpeakerStyle is a single addressable voice style of a Speaker.
type SpeakerStyle struct {
	// Name is the style's display name (e.g., "ノーマル").
	Name string `json:"name"`

	// ID is the numeric style identifier passed as the speaker parameter in
	// synthesis requests.
	ID int `json:"id"`
}
