package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// ExecPlayer plays WAV files by invoking the platform's native command-line
// player: PowerShell's Media.SoundPlayer on Windows, afplay on macOS and
// aplay everywhere else. It holds no state and is safe for concurrent use.
type ExecPlayer struct {
	// goos overrides runtime.GOOS in tests. Empty means the real platform.
	goos string

	// command overrides the platform command lookup in tests.
	command func(goos, path string) (name string, args []string)
}

var _ Player = (*ExecPlayer)(nil)

// NewExecPlayer returns a Player that shells out to the host's audio player.
func NewExecPlayer() *ExecPlayer {
	return &ExecPlayer{}
}

// Play runs the platform player and waits for it to exit. A non-zero exit
// status is logged and swallowed: command-line players report spurious
// failures for perfectly audible output, and a dropped announcement must not
// take the playback worker down with it.
func (p *ExecPlayer) Play(ctx context.Context, wavPath string) error {
	goos := p.goos
	if goos == "" {
		goos = runtime.GOOS
	}
	buildCommand := p.command
	if buildCommand == nil {
		buildCommand = playbackCommand
	}
	name, args := buildCommand(goos, wavPath)

	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("audio: playback interrupted: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Debug("audio player exited non-zero",
				"command", name,
				"exit_code", exitErr.ExitCode(),
				"path", wavPath,
			)
			return nil
		}
		return fmt.Errorf("audio: launch %s: %w", name, err)
	}
	return nil
}

// playbackCommand maps a GOOS value to the native player invocation for path.
func playbackCommand(goos, path string) (name string, args []string) {
	switch goos {
	case "windows":
		script := fmt.Sprintf(`(New-Object Media.SoundPlayer "%s").PlaySync()`, path)
		return "powershell", []string{"-c", script}
	case "darwin":
		return "afplay", []string{path}
	default:
		return "aplay", []string{path}
	}
}
