package config_test

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/yomiage/internal/config"
	"github.com/MrWong99/yomiage/pkg/provider/translate"
	translatemock "github.com/MrWong99/yomiage/pkg/provider/translate/mock"
	"github.com/MrWong99/yomiage/pkg/provider/tts"
	ttsmock "github.com/MrWong99/yomiage/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  host: 0.0.0.0
  port: 9000
  log_level: debug

translator:
  provider: ollama
  model: 7shi/llama-translate:8b-q4_K_M
  base_url: http://localhost:11434
  timeout_seconds: 20

tts:
  provider: voicevox
  base_url: http://localhost:50021
  speaker: 3
  timeout_seconds: 45
  speed_scale: 1.2
  audio_dir: /tmp/yomiage-audio

pipeline:
  translation_queue_size: 50
  tts_queue_size: 25
  playback_queue_size: 10
  translate_workers: 2
  stop_timeout_seconds: 5

dedup:
  window_ms: 1500
  lock_timeout_ms: 250

translation_log:
  dir: logs
`

// clearEnvOverrides blanks every override variable so the surrounding
// environment cannot leak into assertions.
func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"YOMIAGE_HOST", "YOMIAGE_PORT",
		"OLLAMA_MODEL", "OLLAMA_BASE_URL",
		"VOICEVOX_BASE_URL", "VOICEVOX_SPEAKER",
	} {
		t.Setenv(name, "")
	}
}

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host: got %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server.port: got %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Translator.Provider != "ollama" {
		t.Errorf("translator.provider: got %q, want %q", cfg.Translator.Provider, "ollama")
	}
	if cfg.Translator.Timeout() != 20*time.Second {
		t.Errorf("translator timeout: got %v, want 20s", cfg.Translator.Timeout())
	}
	if cfg.TTS.Speaker != 3 {
		t.Errorf("tts.speaker: got %d, want 3", cfg.TTS.Speaker)
	}
	if cfg.TTS.SpeedScale != 1.2 {
		t.Errorf("tts.speed_scale: got %.2f, want 1.2", cfg.TTS.SpeedScale)
	}
	if cfg.TTS.AudioDir != "/tmp/yomiage-audio" {
		t.Errorf("tts.audio_dir: got %q", cfg.TTS.AudioDir)
	}
	if cfg.Pipeline.TranslationQueueSize != 50 || cfg.Pipeline.TTSQueueSize != 25 || cfg.Pipeline.PlaybackQueueSize != 10 {
		t.Errorf("pipeline queue sizes: got %d/%d/%d, want 50/25/10",
			cfg.Pipeline.TranslationQueueSize, cfg.Pipeline.TTSQueueSize, cfg.Pipeline.PlaybackQueueSize)
	}
	if cfg.Pipeline.TranslateWorkers != 2 {
		t.Errorf("pipeline.translate_workers: got %d, want 2", cfg.Pipeline.TranslateWorkers)
	}
	if cfg.Dedup.Window() != 1500*time.Millisecond {
		t.Errorf("dedup window: got %v, want 1.5s", cfg.Dedup.Window())
	}
	if cfg.Dedup.LockTimeout() != 250*time.Millisecond {
		t.Errorf("dedup lock timeout: got %v, want 250ms", cfg.Dedup.LockTimeout())
	}
	if cfg.TranslationLog.Dir != "logs" {
		t.Errorf("translation_log.dir: got %q, want %q", cfg.TranslationLog.Dir, "logs")
	}
}

func TestLoadFromReader_EmptyGetsDefaults(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server.host: got %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("server.port: got %d, want 8765", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server.log_level: got %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Translator.Provider != "ollama" {
		t.Errorf("translator.provider: got %q, want ollama", cfg.Translator.Provider)
	}
	if cfg.Translator.Model != "7shi/llama-translate:8b-q4_K_M" {
		t.Errorf("translator.model: got %q", cfg.Translator.Model)
	}
	if cfg.TTS.Provider != "voicevox" {
		t.Errorf("tts.provider: got %q, want voicevox", cfg.TTS.Provider)
	}
	if cfg.TTS.BaseURL != "http://127.0.0.1:50021" {
		t.Errorf("tts.base_url: got %q", cfg.TTS.BaseURL)
	}
	if cfg.TTS.Speaker != 14 {
		t.Errorf("tts.speaker: got %d, want 14", cfg.TTS.Speaker)
	}
	if cfg.Pipeline.TranslationQueueSize != 100 {
		t.Errorf("pipeline.translation_queue_size: got %d, want 100", cfg.Pipeline.TranslationQueueSize)
	}
	if cfg.Pipeline.TranslateWorkers != 1 {
		t.Errorf("pipeline.translate_workers: got %d, want 1", cfg.Pipeline.TranslateWorkers)
	}
	if cfg.Pipeline.StopTimeout() != 10*time.Second {
		t.Errorf("pipeline stop timeout: got %v, want 10s", cfg.Pipeline.StopTimeout())
	}
	if cfg.Dedup.Window() != time.Second {
		t.Errorf("dedup window: got %v, want 1s", cfg.Dedup.Window())
	}
	if cfg.TranslationLog.Dir != "" {
		t.Errorf("translation_log.dir: got %q, want empty (disabled)", cfg.TranslationLog.Dir)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	clearEnvOverrides(t)

	yaml := `
server:
  port: 8765
speek:
  provider: voicevox
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_InvalidLogLevel(t *testing.T) {
	clearEnvOverrides(t)

	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_PortOutOfRange(t *testing.T) {
	clearEnvOverrides(t)

	for _, port := range []int{80, 1023, 65536, -1} {
		yaml := "server:\n  port: " + strconv.Itoa(port) + "\n"
		_, err := config.LoadFromReader(strings.NewReader(yaml))
		if err == nil {
			t.Errorf("port %d: expected error, got nil", port)
		}
	}
}

func TestValidate_ScaleOutOfRange(t *testing.T) {
	clearEnvOverrides(t)

	yaml := `
tts:
  speed_scale: 3.0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for speed_scale 3.0, got nil")
	}
	if !strings.Contains(err.Error(), "speed_scale") {
		t.Errorf("error should mention speed_scale, got: %v", err)
	}
}

func TestValidate_NegativeQueueSize(t *testing.T) {
	clearEnvOverrides(t)

	yaml := `
pipeline:
  translation_queue_size: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative queue size, got nil")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	clearEnvOverrides(t)

	yaml := `
server:
  port: 80
  log_level: noisy
tts:
  pitch_scale: 9.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined errors, got nil")
	}
	for _, want := range []string{"port", "log_level", "pitch_scale"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidProviderNames(t *testing.T) {
	translators := config.ValidProviderNames["translator"]
	if len(translators) == 0 {
		t.Fatal("no known translator providers")
	}
	found := false
	for _, name := range translators {
		if name == "ollama" {
			found = true
		}
	}
	if !found {
		t.Error("ollama missing from known translator providers")
	}

	ttsNames := config.ValidProviderNames["tts"]
	if len(ttsNames) != 1 || ttsNames[0] != "voicevox" {
		t.Errorf("tts providers = %v, want [voicevox]", ttsNames)
	}
}

// ── Accessors ─────────────────────────────────────────────────────────────────

func TestServerConfig_Addr(t *testing.T) {
	s := config.ServerConfig{Host: "127.0.0.1", Port: 8765}
	if got := s.Addr(); got != "127.0.0.1:8765" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8765", got)
	}

	s = config.ServerConfig{Host: "::1", Port: 9000}
	if got := s.Addr(); got != "[::1]:9000" {
		t.Errorf("Addr() = %q, want [::1]:9000", got)
	}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegistry_UnknownTranslator(t *testing.T) {
	r := config.NewRegistry()
	_, err := r.CreateTranslator(config.TranslatorConfig{Provider: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_UnknownTTS(t *testing.T) {
	r := config.NewRegistry()
	_, err := r.CreateTTS(config.TTSConfig{Provider: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_RegisteredTranslator(t *testing.T) {
	r := config.NewRegistry()
	want := &translatemock.Translator{ModelName: "test-model"}

	var gotCfg config.TranslatorConfig
	r.RegisterTranslator("mock", func(cfg config.TranslatorConfig) (translate.Translator, error) {
		gotCfg = cfg
		return want, nil
	})

	got, err := r.CreateTranslator(config.TranslatorConfig{Provider: "mock", Model: "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("factory result not returned")
	}
	if gotCfg.Model != "m1" {
		t.Errorf("factory received model %q, want m1", gotCfg.Model)
	}
}

func TestRegistry_RegisteredTTS(t *testing.T) {
	r := config.NewRegistry()
	want := &ttsmock.Provider{}

	r.RegisterTTS("mock", func(config.TTSConfig) (tts.Provider, error) {
		return want, nil
	})

	got, err := r.CreateTTS(config.TTSConfig{Provider: "mock"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("factory result not returned")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	r := config.NewRegistry()
	boom := errors.New("backend unreachable")

	r.RegisterTranslator("failing", func(config.TranslatorConfig) (translate.Translator, error) {
		return nil, boom
	})

	_, err := r.CreateTranslator(config.TranslatorConfig{Provider: "failing"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want the factory error", err)
	}
}
