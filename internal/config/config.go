// Package config provides the configuration schema, loader, and provider
// registry for the yomiage server.
package config

import (
	"net"
	"strconv"
	"time"
)

// LogLevel controls log verbosity for the yomiage server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for yomiage.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server         ServerConfig     `yaml:"server"`
	Translator     TranslatorConfig `yaml:"translator"`
	TTS            TTSConfig        `yaml:"tts"`
	Pipeline       PipelineConfig   `yaml:"pipeline"`
	Dedup          DedupConfig      `yaml:"dedup"`
	TranslationLog TranslogConfig   `yaml:"translation_log"`
}

// ServerConfig holds network and logging settings for the HTTP ingress.
type ServerConfig struct {
	// Host is the interface the server binds to. The default 127.0.0.1 keeps
	// the sidecar loopback-only; hook clients run on the same machine.
	Host string `yaml:"host"`

	// Port is the TCP port the server listens on. Default: 8765.
	Port int `yaml:"port"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// Addr returns the host:port string for net/http.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// TranslatorConfig selects and configures the translation backend. The Name
// field is used to look up the constructor in the [Registry].
type TranslatorConfig struct {
	// Provider selects the registered translator implementation
	// (e.g. "ollama", "openai", "anthropic"). Default: "ollama".
	Provider string `yaml:"provider"`

	// Model is the model identifier within the provider.
	// Default: "7shi/llama-translate:8b-q4_K_M", a model tuned for
	// translation rather than conversation.
	Model string `yaml:"model"`

	// BaseURL overrides the provider's default API endpoint. Leave empty to
	// use the provider's built-in default (Ollama: http://localhost:11434).
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against hosted providers. Local backends such as
	// Ollama ignore it. Hosted providers also fall back to their usual
	// environment variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
	APIKey string `yaml:"api_key"`

	// TimeoutSeconds bounds a single translation call. Default: 30.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns TimeoutSeconds as a [time.Duration].
func (t TranslatorConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// TTSConfig configures the speech synthesis engine.
type TTSConfig struct {
	// Provider selects the registered synthesis engine. Default: "voicevox".
	Provider string `yaml:"provider"`

	// BaseURL is the engine's HTTP endpoint. Default: http://127.0.0.1:50021.
	BaseURL string `yaml:"base_url"`

	// Speaker is the VOICEVOX style ID. Default: 14.
	Speaker int `yaml:"speaker"`

	// TimeoutSeconds bounds the whole synthesis exchange (query + synthesis).
	// Default: 30.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// SpeedScale, PitchScale and VolumeScale adjust prosody in the range
	// [0.5, 2.0]. Zero means "engine default".
	SpeedScale  float64 `yaml:"speed_scale"`
	PitchScale  float64 `yaml:"pitch_scale"`
	VolumeScale float64 `yaml:"volume_scale"`

	// AudioDir is the directory WAV files are written to. Empty means a
	// per-run directory under the OS temp dir.
	AudioDir string `yaml:"audio_dir"`
}

// Timeout returns TimeoutSeconds as a [time.Duration].
func (t TTSConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// PipelineConfig sizes the three stage queues and the translation worker
// pool. Synthesis and playback always run single-worker; the synthesis
// engine cannot take concurrent load and overlapping playback is noise.
type PipelineConfig struct {
	// TranslationQueueSize, TTSQueueSize and PlaybackQueueSize cap the stage
	// queues. When a queue is full, producers block. Default: 100 each.
	TranslationQueueSize int `yaml:"translation_queue_size"`
	TTSQueueSize         int `yaml:"tts_queue_size"`
	PlaybackQueueSize    int `yaml:"playback_queue_size"`

	// TranslateWorkers is the translation stage concurrency. Default: 1.
	TranslateWorkers int `yaml:"translate_workers"`

	// StopTimeoutSeconds is how long shutdown waits for in-flight jobs
	// before cancelling them. Default: 10.
	StopTimeoutSeconds int `yaml:"stop_timeout_seconds"`
}

// StopTimeout returns StopTimeoutSeconds as a [time.Duration].
func (p PipelineConfig) StopTimeout() time.Duration {
	return time.Duration(p.StopTimeoutSeconds) * time.Second
}

// DedupConfig tunes the ingress duplicate suppression.
type DedupConfig struct {
	// WindowMS is how long an identical text counts as a duplicate.
	// Default: 1000.
	WindowMS int `yaml:"window_ms"`

	// LockTimeoutMS bounds the dedup state lock acquisition; beyond it the
	// request is answered with 503. Default: 500.
	LockTimeoutMS int `yaml:"lock_timeout_ms"`
}

// Window returns WindowMS as a [time.Duration].
func (d DedupConfig) Window() time.Duration {
	return time.Duration(d.WindowMS) * time.Millisecond
}

// LockTimeout returns LockTimeoutMS as a [time.Duration].
func (d DedupConfig) LockTimeout() time.Duration {
	return time.Duration(d.LockTimeoutMS) * time.Millisecond
}

// TranslogConfig controls the JSONL translation quality log.
type TranslogConfig struct {
	// Dir is the directory daily translation_YYYY-MM-DD.jsonl files are
	// written to. Empty disables the log.
	Dir string `yaml:"dir"`
}
