package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)

	v1, _ := e.Embed(context.Background(), []string{"Refunds take 7 days"})
	v2, _ := e.Embed(context.Background(), []string{"Refunds take 7 days"})

	if len(v1[0]) != 64 {
		t.Fatalf("expected dimension 64, got %d", len(v1[0]))
	}
	for i := range v1[0] {
		if v1[0][i] != v2[0][i] {
			t.Fatalf("embeddings not deterministic at index %d", i)
		}
	}
}

func TestHashEmbedder_Normalised(t *testing.T) {
	e := NewHashEmbedder(128)
	vecs, _ := e.Embed(context.Background(), []string{"installing the package requires root access"})

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", norm)
	}
}

func TestHashEmbedder_EmptyIsZero(t *testing.T) {
	e := NewHashEmbedder(16)
	vecs, err := e.Embed(context.Background(), []string{"", "the of and"})
	if err != nil {
		t.Fatal(err)
	}
	for i, vec := range vecs {
		if len(vec) != 16 {
			t.Fatalf("input %d: expected dimension 16, got %d", i, len(vec))
		}
		for _, v := range vec {
			if v != 0 {
				t.Fatalf("input %d: expected zero vector, got %v", i, vec)
			}
		}
	}
}

func TestHashEmbedder_SharedTermsAreCloser(t *testing.T) {
	e := NewHashEmbedder(384)
	vecs, _ := e.Embed(context.Background(), []string{
		"how do I install X",
		"Installing X requires Y",
		"Refunds take 7 days",
	})

	related := cosine(vecs[0], vecs[1])
	unrelated := cosine(vecs[0], vecs[2])
	if related <= unrelated {
		t.Errorf("expected related text to score higher: related=%f unrelated=%f", related, unrelated)
	}
}

func fakeEmbeddingsServer(t *testing.T, dim int, requests *[][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*requests = append(*requests, req.Input)

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		// reversed order checks that Index, not position, places vectors
		for i := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(len(req.Input[i]))
			data[len(req.Input)-1-i] = item{Object: "embedding", Embedding: vec, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedder_BatchesAndSkipsEmpty(t *testing.T) {
	var requests [][]string
	srv := fakeEmbeddingsServer(t, 4, &requests)
	defer srv.Close()

	t.Setenv("TEST_EMBED_KEY", "sk-test")
	e, err := NewCompatibleEmbedder("TEST_EMBED_KEY", Options{
		Model:     "test-model",
		BaseURL:   srv.URL + "/v1",
		Dimension: 4,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	vecs, err := e.Embed(context.Background(), []string{"a", "", "bbb", "cc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected 2 batched requests, got %d: %v", len(requests), requests)
	}
	for _, batch := range requests {
		for _, in := range batch {
			if in == "" {
				t.Error("empty input should not be sent upstream")
			}
		}
	}

	want := []float32{1, 0, 3, 2}
	for i, w := range want {
		if vecs[i][0] != w {
			t.Errorf("input %d: expected first component %v, got %v", i, w, vecs[i][0])
		}
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	var requests [][]string
	srv := fakeEmbeddingsServer(t, 3, &requests)
	defer srv.Close()

	e := NewOllamaEmbedder(Options{Model: "all-minilm", BaseURL: srv.URL + "/v1"})
	if e.Dimension() != 384 {
		t.Fatalf("expected default dimension 384, got %d", e.Dimension())
	}

	if _, err := e.Embed(context.Background(), []string{"hello"}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	t.Setenv("TEST_MISSING_KEY", "")
	if _, err := NewOpenAIEmbedder("TEST_MISSING_KEY", Options{}); err == nil {
		t.Error("expected error when API key is missing")
	}
}
