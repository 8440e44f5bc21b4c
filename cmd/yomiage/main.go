// Command yomiage is the local translation-and-speech sidecar server.
//
// It listens on a local HTTP port, translates incoming text to Japanese
// through a configurable LLM backend, synthesises it with a local VOICEVOX
// engine and plays the result through the machine's audio device.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/yomiage/internal/app"
	"github.com/MrWong99/yomiage/internal/config"
	"github.com/MrWong99/yomiage/internal/observe"
	"github.com/MrWong99/yomiage/pkg/audio"
	"github.com/MrWong99/yomiage/pkg/provider/translate"
	"github.com/MrWong99/yomiage/pkg/provider/translate/anyllm"
	oaitranslate "github.com/MrWong99/yomiage/pkg/provider/translate/openai"
	"github.com/MrWong99/yomiage/pkg/provider/tts"
	"github.com/MrWong99/yomiage/pkg/provider/tts/voicevox"
)

const defaultConfigPath = "config.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", defaultConfigPath, "path to the YAML configuration file")
	listSpeakers := flag.Bool("list-speakers", false, "print the TTS engine's speaker catalogue and exit")
	flag.Parse()

	// .env is optional; absence is the normal case.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, haveFile, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "yomiage: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if !haveFile {
		slog.Info("config file not found, running on defaults", "path", *configPath)
	}
	slog.Info("yomiage starting",
		"config", *configPath,
		"addr", cfg.Server.Addr(),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Speaker catalogue mode ────────────────────────────────────────────────
	if *listSpeakers {
		return printSpeakers(ctx, cfg, reg)
	}

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Only the log level applies live; everything else warns that a restart
	// is needed.
	if haveFile {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.LogLevelChanged {
				logLevel.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if d.SpeakerChanged {
				slog.Info("tts speaker changed — restart to apply",
					"speaker", d.NewSpeaker,
					"hint", "run with -list-speakers to audition voices")
			}
			if len(d.RestartRequired) > 0 {
				slog.Warn("config changes need a restart to take effect",
					"paths", strings.Join(d.RestartRequired, ", "))
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads the config file at path. A missing file is only an error
// when the user explicitly asked for it; with the default path the server
// runs on built-in defaults plus environment overrides, which is the usual
// zero-setup sidecar deployment. haveFile reports whether a file was read
// (and is therefore worth watching for changes).
func loadConfig(path string) (cfg *config.Config, haveFile bool, err error) {
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg, err = config.Load(path)
	switch {
	case err == nil:
		return cfg, true, nil
	case errors.Is(err, os.ErrNotExist) && !explicit:
		cfg, err = config.LoadFromReader(strings.NewReader(""))
		if err != nil {
			return nil, false, err
		}
		return cfg, false, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, false, fmt.Errorf("config file %q not found — copy configs/example.yaml to get started", path)
	default:
		return nil, false, err
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Translators ───────────────────────────────────────────────────────────
	// The hosted any-llm backends all share the same pattern: optional APIKey +
	// optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterTranslator(providerName, func(tc config.TranslatorConfig) (translate.Translator, error) {
			var opts []anyllmlib.Option
			if tc.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(tc.APIKey))
			}
			if tc.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(tc.BaseURL))
			}
			return anyllm.New(providerName, tc.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterTranslator("ollama", func(tc config.TranslatorConfig) (translate.Translator, error) {
		var opts []anyllmlib.Option
		if tc.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(tc.BaseURL))
		}
		return anyllm.NewOllama(tc.Model, opts...)
	})

	// openai goes through the official SDK rather than any-llm.
	reg.RegisterTranslator("openai", func(tc config.TranslatorConfig) (translate.Translator, error) {
		var opts []oaitranslate.Option
		if tc.BaseURL != "" {
			opts = append(opts, oaitranslate.WithBaseURL(tc.BaseURL))
		}
		if tc.Timeout() > 0 {
			opts = append(opts, oaitranslate.WithTimeout(tc.Timeout()))
		}
		return oaitranslate.New(tc.APIKey, tc.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────
	reg.RegisterTTS("voicevox", func(tc config.TTSConfig) (tts.Provider, error) {
		opts := []voicevox.Option{
			voicevox.WithSpeaker(tc.Speaker),
		}
		if tc.Timeout() > 0 {
			opts = append(opts, voicevox.WithTimeout(tc.Timeout()))
		}
		if tc.AudioDir != "" {
			opts = append(opts, voicevox.WithAudioDir(tc.AudioDir))
		}
		if tc.SpeedScale != 0 {
			opts = append(opts, voicevox.WithSpeedScale(tc.SpeedScale))
		}
		if tc.PitchScale != 0 {
			opts = append(opts, voicevox.WithPitchScale(tc.PitchScale))
		}
		if tc.VolumeScale != 0 {
			opts = append(opts, voicevox.WithVolumeScale(tc.VolumeScale))
		}
		return voicevox.New(tc.BaseURL, opts...)
	})
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	translator, err := reg.CreateTranslator(cfg.Translator)
	if err != nil {
		return nil, fmt.Errorf("create translator %q: %w", cfg.Translator.Provider, err)
	}
	slog.Info("provider created",
		"kind", "translator",
		"name", cfg.Translator.Provider,
		"model", cfg.Translator.Model,
	)

	ttsProv, err := reg.CreateTTS(cfg.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts %q: %w", cfg.TTS.Provider, err)
	}
	slog.Info("provider created",
		"kind", "tts",
		"name", cfg.TTS.Provider,
		"url", cfg.TTS.BaseURL,
		"speaker", cfg.TTS.Speaker,
	)

	return &app.Providers{
		Translator: translator,
		TTS:        ttsProv,
		Player:     audio.NewExecPlayer(),
	}, nil
}

// ── Speaker catalogue ───────────────────────────────────────────────────────

// printSpeakers queries the configured TTS engine for its voice catalogue and
// prints one line per style. The style ID is what tts.speaker expects.
func printSpeakers(ctx context.Context, cfg *config.Config, reg *config.Registry) int {
	ttsProv, err := reg.CreateTTS(cfg.TTS)
	if err != nil {
		slog.Error("failed to create tts provider", "err", err)
		return 1
	}
	defer ttsProv.Close()

	lister, ok := ttsProv.(tts.SpeakerLister)
	if !ok {
		slog.Error("tts provider has no speaker catalogue", "provider", cfg.TTS.Provider)
		return 1
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	speakers, err := lister.ListSpeakers(queryCtx)
	if err != nil {
		slog.Error("failed to list speakers", "err", err, "url", cfg.TTS.BaseURL)
		return 1
	}

	fmt.Printf("Speakers at %s:\n\n", cfg.TTS.BaseURL)
	fmt.Printf("  %5s  %-14s %s\n", "ID", "STYLE", "SPEAKER")
	for _, sp := range speakers {
		for _, style := range sp.Styles {
			fmt.Printf("  %5d  %-14s %s\n", style.ID, style.Name, sp.Name)
		}
	}
	fmt.Printf("\nSet tts.speaker (or VOICEVOX_SPEAKER) to one of the IDs above.\n")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═════════════════════════════════════════════════╗")
	fmt.Println("║             yomiage — startup summary           ║")
	fmt.Println("╠═════════════════════════════════════════════════╣")
	printRow("Listen addr", cfg.Server.Addr())
	printRow("Translator", cfg.Translator.Provider+" / "+cfg.Translator.Model)
	printRow("TTS engine", cfg.TTS.BaseURL)
	printRow("Speaker", strconv.Itoa(cfg.TTS.Speaker))
	printRow("Queues (T/S/P)", fmt.Sprintf("%d / %d / %d",
		cfg.Pipeline.TranslationQueueSize,
		cfg.Pipeline.TTSQueueSize,
		cfg.Pipeline.PlaybackQueueSize,
	))
	if cfg.TranslationLog.Dir != "" {
		printRow("Translation log", cfg.TranslationLog.Dir)
	} else {
		printRow("Translation log", "(disabled)")
	}
	fmt.Println("╚═════════════════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 29 {
		value = value[:26] + "…"
	}
	fmt.Printf("║  %-15s : %-29s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar lets the config
// watcher adjust verbosity without a restart.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
