package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"ragqa/config"
	"ragqa/internal/adapter/chunkstore"
	"ragqa/internal/adapter/embedding"
	"ragqa/internal/adapter/linker"
	"ragqa/internal/adapter/ocr"
	"ragqa/internal/adapter/vectorindex"
	"ragqa/internal/domain"
	"ragqa/internal/port"
	"ragqa/internal/usecase"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(&strings.Builder{}, log.Options{})
}

func newAnswerer(t *testing.T, chunks []domain.Chunk, emb port.Embedder) *usecase.Answerer {
	t.Helper()
	store := chunkstore.New(chunks)
	idx := vectorindex.NewFlat(emb.Dimension(), vectorindex.L2)
	if len(chunks) > 0 {
		vecs, err := embedding.NewHashEmbedder(emb.Dimension()).Embed(context.Background(), store.Texts())
		if err != nil {
			t.Fatal(err)
		}
		if err := idx.Build(store.IDs(), vecs); err != nil {
			t.Fatal(err)
		}
	}
	rt, err := usecase.NewRuntime(store, idx, emb)
	if err != nil {
		t.Fatal(err)
	}

	links, err := linker.NewBuilder("https://forum.example.com/", linker.TextChunk, nil)
	if err != nil {
		t.Fatal(err)
	}
	extractor := ocr.NewTesseract(ocr.Options{}).WithRunner(
		func(context.Context, string, []string, []byte) ([]byte, error) {
			return nil, errors.New("tesseract missing")
		})

	return usecase.NewAnswerer(rt, extractor, links, usecase.AnswererOptions{
		FallbackAnswer: "no answer",
		Logger:         quietLogger(),
	})
}

var scenarioChunks = []domain.Chunk{
	{ID: "1", Text: "How to install X", Source: "a/1"},
	{ID: "2", Text: "Refund policy for Y", Source: "b/2"},
}

func testServer(t *testing.T, a *usecase.Lazy[*usecase.Answerer], mutate func(*config.ServerConfig)) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig().Server
	if mutate != nil {
		mutate(&cfg)
	}
	return New(a, cfg, quietLogger()).Handler()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeAnswer(t *testing.T, rec *httptest.ResponseRecorder) domain.Answer {
	t.Helper()
	var ans domain.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatalf("invalid response body %q: %v", rec.Body.String(), err)
	}
	return ans
}

func TestAnswer_InstallScenario(t *testing.T) {
	h := testServer(t, usecase.Ready(newAnswerer(t, scenarioChunks, embedding.NewHashEmbedder(384))), nil)

	for _, path := range []string{"/", "/api"} {
		t.Run(path, func(t *testing.T) {
			rec := post(t, h, path, `{"question": "installing X", "image": null}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("expected X-Request-ID header")
			}
			ans := decodeAnswer(t, rec)
			if len(ans.Links) == 0 || !strings.Contains(ans.Links[0].URL, "a/1") {
				t.Errorf("expected first link to contain a/1, got %+v", ans.Links)
			}
		})
	}
}

func TestAnswer_GibberishWithInvalidImage(t *testing.T) {
	h := testServer(t, usecase.Ready(newAnswerer(t, scenarioChunks, embedding.NewHashEmbedder(384))), nil)

	rec := post(t, h, "/", `{"question": "qwzx vbnm", "image": "not-an-image"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	ans := decodeAnswer(t, rec)
	if ans.Answer == "" {
		t.Error("expected a non-empty answer")
	}
}

func TestAnswer_EmptyCorpus(t *testing.T) {
	h := testServer(t, usecase.Ready(newAnswerer(t, nil, embedding.NewHashEmbedder(16))), nil)

	rec := post(t, h, "/", `{"question": "hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"links":[]`) {
		t.Errorf("expected empty links array, got %s", rec.Body.String())
	}
	if ans := decodeAnswer(t, rec); ans.Answer != "no answer" {
		t.Errorf("expected fallback answer, got %q", ans.Answer)
	}
}

func TestAnswer_BadRequests(t *testing.T) {
	h := testServer(t, usecase.Ready(newAnswerer(t, scenarioChunks, embedding.NewHashEmbedder(384))), func(c *config.ServerConfig) {
		c.MaxBodyBytes = 64
	})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid_json", `{"question":`, http.StatusBadRequest},
		{"missing_question", `{"image": null}`, http.StatusBadRequest},
		{"wrong_type", `{"question": 7}`, http.StatusBadRequest},
		{"too_large", `{"question": "` + strings.Repeat("a", 200) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Errorf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestAnswer_MethodNotAllowed(t *testing.T) {
	h := testServer(t, usecase.Ready(newAnswerer(t, scenarioChunks, embedding.NewHashEmbedder(384))), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestAnswer_Unavailable(t *testing.T) {
	lazy := usecase.NewLazy(func(context.Context) (*usecase.Answerer, error) {
		return nil, domain.ErrIndexUnavailable
	})
	h := testServer(t, lazy, nil)

	rec := post(t, h, "/", `{"question": "anything"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	health := httptest.NewRecorder()
	h.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusServiceUnavailable {
		t.Errorf("expected healthz 503 after failed init, got %d", health.Code)
	}
}

type brokenEmbedder struct{ dim int }

func (e brokenEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}
func (e brokenEmbedder) Dimension() int    { return e.dim }
func (e brokenEmbedder) ModelName() string { return "broken" }

func TestAnswer_EncodingFailure(t *testing.T) {
	h := testServer(t, usecase.Ready(newAnswerer(t, scenarioChunks, brokenEmbedder{dim: 384})), nil)

	rec := post(t, h, "/", `{"question": "anything"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

type slowEmbedder struct{ dim int }

func (e slowEmbedder) Embed(ctx context.Context, _ []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (e slowEmbedder) Dimension() int    { return e.dim }
func (e slowEmbedder) ModelName() string { return "slow" }

func TestAnswer_Timeout(t *testing.T) {
	h := testServer(t, usecase.Ready(newAnswerer(t, scenarioChunks, slowEmbedder{dim: 384})), func(c *config.ServerConfig) {
		c.RequestTimeout = 20 * time.Millisecond
	})

	rec := post(t, h, "/", `{"question": "anything"}`)
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := testServer(t, usecase.Ready(newAnswerer(t, scenarioChunks, embedding.NewHashEmbedder(384))), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Chunks != 2 || body.Model != "hash-v1" {
		t.Errorf("unexpected health body %+v", body)
	}
}

func TestHealth_PendingLazyLoad(t *testing.T) {
	lazy := usecase.NewLazy(func(context.Context) (*usecase.Answerer, error) {
		return newAnswerer(t, scenarioChunks, embedding.NewHashEmbedder(384)), nil
	})
	h := testServer(t, lazy, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !strings.Contains(rec.Body.String(), `"pending"`) {
		t.Errorf("expected pending status before first request, got %s", rec.Body.String())
	}

	if rec := post(t, h, "/", `{"question": "refund"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected lazy load on first request, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("expected ok after load, got %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	h := testServer(t, usecase.Ready(newAnswerer(t, scenarioChunks, embedding.NewHashEmbedder(384))), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Errorf("expected CORS allow-origin header, got %v", rec.Header())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{domain.ErrIndexUnavailable, http.StatusServiceUnavailable},
		{domain.ErrEncoding, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
