package hook

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultStateFile is where the think-aloud mode remembers what it last
// spoke, relative to the working directory unless overridden.
const DefaultStateFile = ".last_thinking_hash"

// State persists the hash of the last spoken thinking block so repeated hook
// invocations against an unchanged transcript stay silent. The file holds a
// single hex digest and nothing else.
type State struct {
	path string
}

// NewState returns a State backed by the file at path.
func NewState(path string) *State {
	return &State{path: path}
}

// Seen reports whether text matches the digest recorded by the previous run.
// A missing or unreadable state file reads as not seen.
func (s *State) Seen(text string) bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == hashText(text)
}

// Remember records text's digest for the next run, creating parent
// directories as needed.
func (s *State) Remember(text string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("hook: create state dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(hashText(text)), 0o644); err != nil {
		return fmt.Errorf("hook: write state: %w", err)
	}
	return nil
}

// hashText fingerprints text for change detection. MD5 is plenty here; the
// digest guards against re-speaking, not against an adversary.
func hashText(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
