// Package voicevox provides a TTS provider backed by a locally-running
// VOICEVOX engine (https://voicevox.hiroshiba.jp/). It implements the
// tts.Provider interface.
//
// Synthesis follows the engine's two-step protocol:
//
//  1. POST /audio_query?text=...&speaker=N builds the synthesis query. The
//     returned JSON carries prosody parameters (speedScale, pitchScale,
//     volumeScale) that may be adjusted before synthesis.
//  2. POST /synthesis?speaker=N with the (possibly adjusted) query as the
//     JSON body returns the rendered WAV bytes.
//
// The WAV is written to <dir>/tts_<requestID>.wav so the playback stage can
// play and then delete it.
//
// Typical usage:
//
//	p, err := voicevox.New("http://localhost:50021",
//	    voicevox.WithSpeaker(14),
//	    voicevox.WithTimeout(30*time.Second),
//	)
//	path, err := p.SynthesizeToFile(ctx, "こんにちは", "a1b2c3d4")
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/yomiage/pkg/provider/tts"
)

// Compile-time interface assertions.
var (
	_ tts.Provider      = (*Provider)(nil)
	_ tts.SpeakerLister = (*Provider)(nil)
)

// ---- constants ----

const (
	defaultSpeaker = 14
	defaultTimeout = 30 * time.Second

	audioQueryEndpoint = "/audio_query"
	synthesisEndpoint  = "/synthesis"
	versionEndpoint    = "/version"
	speakersEndpoint   = "/speakers"
)

// ---- options ----

// Option is a functional option for configuring a VOICEVOX Provider.
type Option func(*Provider)

// WithSpeaker sets the speaker (voice style) ID used for synthesis.
// Defaults to 14 if not set. Run the engine's /speakers endpoint (or the
// -list-speakers flag of the server binary) to discover available IDs.
func WithSpeaker(id int) Option {
	return func(p *Provider) {
		p.speaker = id
	}
}

// WithTimeout sets the per-request HTTP timeout for calls to the engine.
// Defaults to 30 s if not set.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAudioDir sets the directory where synthesised WAV files are written.
// The directory is created on first use. Defaults to <os.TempDir()>/yomiage.
func WithAudioDir(dir string) Option {
	return func(p *Provider) {
		p.audioDir = dir
	}
}

// WithSpeedScale adjusts the speaking rate (0.5–2.0, 1.0 = engine default).
// Values equal to 1.0 leave the engine's query untouched.
func WithSpeedScale(scale float64) Option {
	return func(p *Provider) {
		p.speedScale = scale
	}
}

// WithPitchScale adjusts the voice pitch (0.5–2.0, 1.0 = engine default).
func WithPitchScale(scale float64) Option {
	return func(p *Provider) {
		p.pitchScale = scale
	}
}

// WithVolumeScale adjusts the output volume (0.5–2.0, 1.0 = engine default).
func WithVolumeScale(scale float64) Option {
	return func(p *Provider) {
		p.volumeScale = scale
	}
}

// ---- Provider ----

// Provider implements tts.Provider backed by a locally-running VOICEVOX
// engine. It is safe for concurrent use, though callers typically serialise
// synthesis because local engines degrade badly under parallel load.
type Provider struct {
	serverURL   string
	speaker     int
	audioDir    string
	speedScale  float64
	pitchScale  float64
	volumeScale float64
	httpClient  *http.Client
}

// New creates a Provider that targets the VOICEVOX engine at serverURL
// (e.g., "http://localhost:50021"). serverURL must be non-empty. Functional
// options may override the speaker, per-request timeout, output directory,
// and prosody scales.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("voicevox: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:   strings.TrimRight(serverURL, "/"),
		speaker:     defaultSpeaker,
		audioDir:    filepath.Join(os.TempDir(), "yomiage"),
		speedScale:  1.0,
		pitchScale:  1.0,
		volumeScale: 1.0,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- SynthesizeToFile ----

// SynthesizeToFile renders text into a WAV file named tts_<requestID>.wav in
// the provider's audio directory and returns the written path. The audio
// directory is created if it does not exist.
//
// Prosody scales configured away from 1.0 are applied to the audio query
// between the two protocol steps; the engine reads them from the query body,
// not from URL parameters.
func (p *Provider) SynthesizeToFile(ctx context.Context, text, requestID string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("voicevox: text must not be empty")
	}

	query, err := p.audioQuery(ctx, text)
	if err != nil {
		return "", err
	}

	wav, err := p.synthesize(ctx, query)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(p.audioDir, 0o755); err != nil {
		return "", fmt.Errorf("voicevox: create audio dir %s: %w", p.audioDir, err)
	}
	path := filepath.Join(p.audioDir, "tts_"+requestID+".wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("voicevox: write %s: %w", path, err)
	}

	slog.Debug("synthesised audio", "path", path, "bytes", len(wav))
	return path, nil
}

// audioQuery performs protocol step 1 and returns the query with any
// non-default prosody scales applied.
func (p *Provider) audioQuery(ctx context.Context, text string) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("speaker", strconv.Itoa(p.speaker))

	reqURL := p.serverURL + audioQueryEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("voicevox: create audio-query request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox: POST %s: %w", audioQueryEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voicevox: POST %s returned status %d", audioQueryEndpoint, resp.StatusCode)
	}

	// The query carries many engine-version-dependent fields, so it is kept
	// as a generic map rather than a typed struct; only the prosody keys are
	// touched before the round-trip back to the engine.
	var query map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		return nil, fmt.Errorf("voicevox: decode audio query: %w", err)
	}
	if p.speedScale != 1.0 {
		query["speedScale"] = p.speedScale
	}
	if p.pitchScale != 1.0 {
		query["pitchScale"] = p.pitchScale
	}
	if p.volumeScale != 1.0 {
		query["volumeScale"] = p.volumeScale
	}

	data, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("voicevox: marshal audio query: %w", err)
	}
	return data, nil
}

// synthesize performs protocol step 2 and returns the rendered WAV bytes.
func (p *Provider) synthesize(ctx context.Context, query []byte) ([]byte, error) {
	params := url.Values{}
	params.Set("speaker", strconv.Itoa(p.speaker))

	reqURL := p.serverURL + synthesisEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("voicevox: create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox: POST %s: %w", synthesisEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voicevox: POST %s returned status %d", synthesisEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voicevox: read WAV response: %w", err)
	}
	return wav, nil
}

// ---- CheckHealth ----

// CheckHealth calls GET /version and reports an error when the engine is
// unreachable or answers with a non-200 status. The engine version is logged
// at debug level on success.
func (p *Provider) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+versionEndpoint, nil)
	if err != nil {
		return fmt.Errorf("voicevox: create version request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("voicevox: GET %s: %w", versionEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("voicevox: GET %s returned status %d", versionEndpoint, resp.StatusCode)
	}

	version, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("voicevox: read version response: %w", err)
	}
	slog.Debug("voicevox engine reachable", "version", strings.TrimSpace(string(version)))
	return nil
}

// ---- ListSpeakers ----

// ListSpeakers retrieves the engine's voice catalogue via GET /speakers.
// Each speaker carries one or more styles; the style ID is what synthesis
// requests accept as the speaker parameter.
func (p *Provider) ListSpeakers(ctx context.Context) ([]tts.Speaker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+speakersEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("voicevox: create speakers request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox: GET %s: %w", speakersEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voicevox: GET %s returned status %d", speakersEndpoint, resp.StatusCode)
	}

	var speakers []tts.Speaker
	if err := json.NewDecoder(resp.Body).Decode(&speakers); err != nil {
		return nil, fmt.Errorf("voicevox: decode speakers response: %w", err)
	}
	return speakers, nil
}

// ---- Close ----

// Close releases idle HTTP connections. The provider must not be used after
// Close returns.
func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
