package voicevox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeEngine is a minimal in-memory VOICEVOX engine. It records the requests
// it receives so tests can assert on the two-step protocol.
type fakeEngine struct {
	mu sync.Mutex

	// audioQueryStatus / synthesisStatus override the 200 responses.
	audioQueryStatus int
	synthesisStatus  int
	versionStatus    int

	// wav is the payload returned from /synthesis.
	wav []byte

	// delay stalls every handler, used for timeout tests.
	delay time.Duration

	queryTexts    []string
	querySpeakers []string
	synthSpeakers []string
	synthQueries  []map[string]any
}

func (f *fakeEngine) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /audio_query", func(w http.ResponseWriter, r *http.Request) {
		f.stall()
		f.mu.Lock()
		f.queryTexts = append(f.queryTexts, r.URL.Query().Get("text"))
		f.querySpeakers = append(f.querySpeakers, r.URL.Query().Get("speaker"))
		status := f.audioQueryStatus
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		// A trimmed-down real audio query: prosody keys plus an unrelated
		// field that must survive the round trip untouched.
		io.WriteString(w, `{"speedScale":1.0,"pitchScale":1.0,"volumeScale":1.0,"outputSamplingRate":24000}`)
	})

	mux.HandleFunc("POST /synthesis", func(w http.ResponseWriter, r *http.Request) {
		f.stall()
		var query map[string]any
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.synthSpeakers = append(f.synthSpeakers, r.URL.Query().Get("speaker"))
		f.synthQueries = append(f.synthQueries, query)
		status := f.synthesisStatus
		wav := f.wav
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, _ *http.Request) {
		f.stall()
		f.mu.Lock()
		status := f.versionStatus
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		io.WriteString(w, "0.24.1")
	})

	mux.HandleFunc("GET /speakers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"name":"ずんだもん","speaker_uuid":"uuid-1","styles":[{"name":"ノーマル","id":3},{"name":"あまあま","id":1}]},
			{"name":"四国めたん","speaker_uuid":"uuid-2","styles":[{"name":"ノーマル","id":2}]}
		]`)
	})

	return mux
}

func (f *fakeEngine) stall() {
	f.mu.Lock()
	d := f.delay
	f.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

// newTestProvider spins up a fake engine and returns a Provider pointed at it.
func newTestProvider(t *testing.T, engine *fakeEngine, opts ...Option) *Provider {
	t.Helper()
	if engine.wav == nil {
		engine.wav = []byte("RIFF fake wav data")
	}
	srv := httptest.NewServer(engine.handler())
	t.Cleanup(srv.Close)

	opts = append([]Option{WithAudioDir(t.TempDir())}, opts...)
	p, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New(%q): unexpected error: %v", srv.URL, err)
	}
	return p
}

// ---- Provider creation ----

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := New("http://localhost:50021")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.speaker != defaultSpeaker {
			t.Errorf("speaker = %d, want %d", p.speaker, defaultSpeaker)
		}
		if p.httpClient.Timeout != defaultTimeout {
			t.Errorf("timeout = %v, want %v", p.httpClient.Timeout, defaultTimeout)
		}
		if p.speedScale != 1.0 || p.pitchScale != 1.0 || p.volumeScale != 1.0 {
			t.Errorf("prosody scales = %v/%v/%v, want all 1.0", p.speedScale, p.pitchScale, p.volumeScale)
		}
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		p, err := New("http://localhost:50021/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.serverURL != "http://localhost:50021" {
			t.Errorf("serverURL = %q, want trailing slash stripped", p.serverURL)
		}
	})

	t.Run("empty URL rejected", func(t *testing.T) {
		if _, err := New(""); err == nil {
			t.Fatal("expected error for empty serverURL")
		}
	})
}

// ---- SynthesizeToFile ----

func TestSynthesizeToFile(t *testing.T) {
	engine := &fakeEngine{wav: []byte("RIFF wav bytes here")}
	p := newTestProvider(t, engine, WithSpeaker(3))

	path, err := p.SynthesizeToFile(context.Background(), "こんにちは", "a1b2c3d4")
	if err != nil {
		t.Fatalf("SynthesizeToFile: %v", err)
	}

	if got, want := filepath.Base(path), "tts_a1b2c3d4.wav"; got != want {
		t.Errorf("file name = %q, want %q", got, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output file: %v", err)
	}
	if string(data) != "RIFF wav bytes here" {
		t.Errorf("file content = %q, want the engine's WAV bytes", data)
	}

	if len(engine.queryTexts) != 1 || engine.queryTexts[0] != "こんにちは" {
		t.Errorf("audio_query texts = %v, want exactly the input text", engine.queryTexts)
	}
	if engine.querySpeakers[0] != "3" || engine.synthSpeakers[0] != "3" {
		t.Errorf("speaker params = %v/%v, want 3 on both calls", engine.querySpeakers, engine.synthSpeakers)
	}
}

func TestSynthesizeToFile_EmptyText(t *testing.T) {
	engine := &fakeEngine{}
	p := newTestProvider(t, engine)

	if _, err := p.SynthesizeToFile(context.Background(), "   ", "a1b2c3d4"); err == nil {
		t.Fatal("expected error for blank text")
	}
	if len(engine.queryTexts) != 0 {
		t.Error("engine was contacted despite blank text")
	}
}

func TestSynthesizeToFile_ProsodyScales(t *testing.T) {
	t.Run("default scales leave query untouched", func(t *testing.T) {
		engine := &fakeEngine{}
		p := newTestProvider(t, engine)

		if _, err := p.SynthesizeToFile(context.Background(), "テスト", "r1"); err != nil {
			t.Fatalf("SynthesizeToFile: %v", err)
		}
		q := engine.synthQueries[0]
		if q["speedScale"] != 1.0 {
			t.Errorf("speedScale = %v, want engine default 1.0", q["speedScale"])
		}
	})

	t.Run("configured scales are applied", func(t *testing.T) {
		engine := &fakeEngine{}
		p := newTestProvider(t, engine,
			WithSpeedScale(1.3),
			WithPitchScale(0.9),
			WithVolumeScale(1.1),
		)

		if _, err := p.SynthesizeToFile(context.Background(), "テスト", "r1"); err != nil {
			t.Fatalf("SynthesizeToFile: %v", err)
		}
		q := engine.synthQueries[0]
		if q["speedScale"] != 1.3 {
			t.Errorf("speedScale = %v, want 1.3", q["speedScale"])
		}
		if q["pitchScale"] != 0.9 {
			t.Errorf("pitchScale = %v, want 0.9", q["pitchScale"])
		}
		if q["volumeScale"] != 1.1 {
			t.Errorf("volumeScale = %v, want 1.1", q["volumeScale"])
		}
		// Unrelated fields must survive the round trip.
		if q["outputSamplingRate"] != 24000.0 {
			t.Errorf("outputSamplingRate = %v, want 24000 preserved", q["outputSamplingRate"])
		}
	})
}

func TestSynthesizeToFile_EngineErrors(t *testing.T) {
	t.Run("audio_query failure", func(t *testing.T) {
		engine := &fakeEngine{audioQueryStatus: http.StatusUnprocessableEntity}
		p := newTestProvider(t, engine)

		_, err := p.SynthesizeToFile(context.Background(), "テスト", "r1")
		if err == nil {
			t.Fatal("expected error on audio_query 422")
		}
		if !strings.Contains(err.Error(), "audio_query") {
			t.Errorf("error %q does not name the failing endpoint", err)
		}
	})

	t.Run("synthesis failure", func(t *testing.T) {
		engine := &fakeEngine{synthesisStatus: http.StatusInternalServerError}
		p := newTestProvider(t, engine)

		if _, err := p.SynthesizeToFile(context.Background(), "テスト", "r1"); err == nil {
			t.Fatal("expected error on synthesis 500")
		}
	})
}

func TestSynthesizeToFile_ContextDeadline(t *testing.T) {
	engine := &fakeEngine{delay: 200 * time.Millisecond}
	p := newTestProvider(t, engine)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.SynthesizeToFile(ctx, "テスト", "r1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	// The pipeline classifies timeouts via errors.Is / os.IsTimeout, so the
	// deadline must be visible in the error chain.
	if !errors.Is(err, context.DeadlineExceeded) && !os.IsTimeout(err) {
		t.Errorf("error %v does not carry the deadline in its chain", err)
	}
}

// ---- CheckHealth ----

func TestCheckHealth(t *testing.T) {
	t.Run("reachable engine", func(t *testing.T) {
		p := newTestProvider(t, &fakeEngine{})
		if err := p.CheckHealth(context.Background()); err != nil {
			t.Fatalf("CheckHealth: %v", err)
		}
	})

	t.Run("engine error status", func(t *testing.T) {
		p := newTestProvider(t, &fakeEngine{versionStatus: http.StatusInternalServerError})
		if err := p.CheckHealth(context.Background()); err == nil {
			t.Fatal("expected error on /version 500")
		}
	})

	t.Run("unreachable engine", func(t *testing.T) {
		p, err := New("http://127.0.0.1:1") // nothing listens here
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := p.CheckHealth(context.Background()); err == nil {
			t.Fatal("expected error for unreachable engine")
		}
	})
}

// ---- ListSpeakers ----

func TestListSpeakers(t *testing.T) {
	p := newTestProvider(t, &fakeEngine{})

	speakers, err := p.ListSpeakers(context.Background())
	if err != nil {
		t.Fatalf("ListSpeakers: %v", err)
	}
	if len(speakers) != 2 {
		t.Fatalf("got %d speakers, want 2", len(speakers))
	}
	if speakers[0].Name != "ずんだもん" {
		t.Errorf("speakers[0].Name = %q", speakers[0].Name)
	}
	if len(speakers[0].Styles) != 2 || speakers[0].Styles[0].ID != 3 {
		t.Errorf("speakers[0].Styles = %+v, want style ID 3 first", speakers[0].Styles)
	}
}

// ---- Close ----

func TestClose(t *testing.T) {
	p := newTestProvider(t, &fakeEngine{})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
