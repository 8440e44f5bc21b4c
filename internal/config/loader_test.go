package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/yomiage/internal/config"
)

func TestLoad_FromFile(t *testing.T) {
	clearEnvOverrides(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server.port: got %d, want 9000", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/yomiage.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("error should mention the open failure, got: %v", err)
	}
}

func TestDefault(t *testing.T) {
	clearEnvOverrides(t)

	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
	if cfg.Server.Addr() != "127.0.0.1:8765" {
		t.Errorf("default addr = %q, want 127.0.0.1:8765", cfg.Server.Addr())
	}
	if cfg.TTS.Provider != "voicevox" {
		t.Errorf("default tts provider = %q, want voicevox", cfg.TTS.Provider)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("YOMIAGE_HOST", "0.0.0.0")
	t.Setenv("YOMIAGE_PORT", "9100")
	t.Setenv("OLLAMA_MODEL", "qwen3:8b")
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
	t.Setenv("VOICEVOX_BASE_URL", "http://gpu-box:50021")
	t.Setenv("VOICEVOX_SPEAKER", "3")

	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host: got %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port: got %d, want 9100", cfg.Server.Port)
	}
	if cfg.Translator.Model != "qwen3:8b" {
		t.Errorf("model: got %q, want qwen3:8b", cfg.Translator.Model)
	}
	if cfg.Translator.BaseURL != "http://gpu-box:11434" {
		t.Errorf("translator base_url: got %q", cfg.Translator.BaseURL)
	}
	if cfg.TTS.BaseURL != "http://gpu-box:50021" {
		t.Errorf("tts base_url: got %q", cfg.TTS.BaseURL)
	}
	if cfg.TTS.Speaker != 3 {
		t.Errorf("speaker: got %d, want 3", cfg.TTS.Speaker)
	}
}

func TestEnvOverrides_BeatFileValues(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("VOICEVOX_SPEAKER", "47")

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TTS.Speaker != 47 {
		t.Errorf("speaker: got %d, want env override 47 over file value 3", cfg.TTS.Speaker)
	}
}

func TestEnvOverrides_InvalidNumbersIgnored(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("YOMIAGE_PORT", "not-a-port")
	t.Setenv("VOICEVOX_SPEAKER", "loud")

	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("port: got %d, want default 8765", cfg.Server.Port)
	}
	if cfg.TTS.Speaker != 14 {
		t.Errorf("speaker: got %d, want default 14", cfg.TTS.Speaker)
	}
}
