package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"translator": {"ollama", "openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":        {"voicevox"},
}

// Default reports the built-in configuration: loopback ingress on port 8765,
// Ollama translation, VOICEVOX synthesis on its standard port.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults and environment overrides applied. It is a
// convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, applies
// environment variable overrides and validates the result. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields with the built-in defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.Translator.Provider == "" {
		cfg.Translator.Provider = "ollama"
	}
	if cfg.Translator.Model == "" {
		cfg.Translator.Model = "7shi/llama-translate:8b-q4_K_M"
	}
	if cfg.Translator.TimeoutSeconds == 0 {
		cfg.Translator.TimeoutSeconds = 30
	}

	if cfg.TTS.Provider == "" {
		cfg.TTS.Provider = "voicevox"
	}
	if cfg.TTS.BaseURL == "" {
		cfg.TTS.BaseURL = "http://127.0.0.1:50021"
	}
	if cfg.TTS.Speaker == 0 {
		cfg.TTS.Speaker = 14
	}
	if cfg.TTS.TimeoutSeconds == 0 {
		cfg.TTS.TimeoutSeconds = 30
	}

	if cfg.Pipeline.TranslationQueueSize == 0 {
		cfg.Pipeline.TranslationQueueSize = 100
	}
	if cfg.Pipeline.TTSQueueSize == 0 {
		cfg.Pipeline.TTSQueueSize = 100
	}
	if cfg.Pipeline.PlaybackQueueSize == 0 {
		cfg.Pipeline.PlaybackQueueSize = 100
	}
	if cfg.Pipeline.TranslateWorkers == 0 {
		cfg.Pipeline.TranslateWorkers = 1
	}
	if cfg.Pipeline.StopTimeoutSeconds == 0 {
		cfg.Pipeline.StopTimeoutSeconds = 10
	}

	if cfg.Dedup.WindowMS == 0 {
		cfg.Dedup.WindowMS = 1000
	}
	if cfg.Dedup.LockTimeoutMS == 0 {
		cfg.Dedup.LockTimeoutMS = 500
	}
}

// applyEnvOverrides lets the environment override the most commonly tweaked
// values without editing the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("YOMIAGE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("YOMIAGE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring invalid YOMIAGE_PORT", "value", v)
		} else {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Translator.Model = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Translator.BaseURL = v
	}
	if v := os.Getenv("VOICEVOX_BASE_URL"); v != "" {
		cfg.TTS.BaseURL = v
	}
	if v := os.Getenv("VOICEVOX_SPEAKER"); v != "" {
		speaker, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring invalid VOICEVOX_SPEAKER", "value", v)
		} else {
			cfg.TTS.Speaker = speaker
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.Port < 1024 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range [1024, 65535]", cfg.Server.Port))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("translator", cfg.Translator.Provider)
	validateProviderName("tts", cfg.TTS.Provider)

	if cfg.Translator.Model == "" {
		errs = append(errs, errors.New("translator.model is required"))
	}
	if cfg.Translator.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("translator.timeout_seconds %d must not be negative", cfg.Translator.TimeoutSeconds))
	}

	// TTS
	if cfg.TTS.Speaker < 0 {
		errs = append(errs, fmt.Errorf("tts.speaker %d must not be negative", cfg.TTS.Speaker))
	}
	if cfg.TTS.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("tts.timeout_seconds %d must not be negative", cfg.TTS.TimeoutSeconds))
	}
	for _, scale := range []struct {
		name  string
		value float64
	}{
		{"tts.speed_scale", cfg.TTS.SpeedScale},
		{"tts.pitch_scale", cfg.TTS.PitchScale},
		{"tts.volume_scale", cfg.TTS.VolumeScale},
	} {
		if scale.value != 0 && (scale.value < 0.5 || scale.value > 2.0) {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0.5, 2.0]", scale.name, scale.value))
		}
	}

	// Pipeline
	if cfg.Pipeline.TranslationQueueSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.translation_queue_size %d must be at least 1", cfg.Pipeline.TranslationQueueSize))
	}
	if cfg.Pipeline.TTSQueueSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.tts_queue_size %d must be at least 1", cfg.Pipeline.TTSQueueSize))
	}
	if cfg.Pipeline.PlaybackQueueSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.playback_queue_size %d must be at least 1", cfg.Pipeline.PlaybackQueueSize))
	}
	if cfg.Pipeline.TranslateWorkers < 1 {
		errs = append(errs, fmt.Errorf("pipeline.translate_workers %d must be at least 1", cfg.Pipeline.TranslateWorkers))
	}
	if cfg.Pipeline.StopTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("pipeline.stop_timeout_seconds %d must not be negative", cfg.Pipeline.StopTimeoutSeconds))
	}

	// Dedup
	if cfg.Dedup.WindowMS < 0 {
		errs = append(errs, fmt.Errorf("dedup.window_ms %d must not be negative", cfg.Dedup.WindowMS))
	}
	if cfg.Dedup.LockTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("dedup.lock_timeout_ms %d must not be negative", cfg.Dedup.LockTimeoutMS))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
