package vectorindex

import (
	"errors"
	"math"
	"testing"

	"ragqa/internal/domain"
)

func buildFlat(t *testing.T, metric Metric, vectors [][]float32) *Flat {
	t.Helper()
	f := NewFlat(0, metric)
	if err := f.Build(nil, vectors); err != nil {
		t.Fatal(err)
	}
	return f
}

func lineVectors() [][]float32 {
	// points on a line: distance from the origin grows with position
	return [][]float32{{4, 0}, {1, 0}, {3, 0}, {0, 0}, {2, 0}}
}

func TestSearch_ExactlyKOrdered(t *testing.T) {
	f := buildFlat(t, L2, lineVectors())

	for k := 1; k <= f.Len(); k++ {
		results, err := f.Search([]float32{0, 0}, k)
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if len(results) != k {
			t.Fatalf("k=%d: expected %d results, got %d", k, k, len(results))
		}
		for i := 1; i < len(results); i++ {
			if results[i].Distance < results[i-1].Distance {
				t.Errorf("k=%d: results not ordered by distance: %+v", k, results)
			}
		}
	}

	results, _ := f.Search([]float32{0, 0}, 3)
	want := []int{3, 1, 4}
	for i, p := range want {
		if results[i].Position != p {
			t.Errorf("rank %d: expected position %d, got %d", i, p, results[i].Position)
		}
	}
	if results[2].Distance != 4 {
		t.Errorf("expected squared L2 distance 4, got %f", results[2].Distance)
	}
}

func TestSearch_FewerRowsThanK(t *testing.T) {
	f := buildFlat(t, L2, [][]float32{{1, 1}, {0, 1}})

	results, err := f.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results without padding, got %d", len(results))
	}
}

func TestSearch_Empty(t *testing.T) {
	f := NewFlat(4, L2)
	if err := f.Build(nil, nil); err != nil {
		t.Fatal(err)
	}

	results, err := f.Search([]float32{1, 2, 3, 4}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", results)
	}
}

func TestSearch_InvalidK(t *testing.T) {
	f := buildFlat(t, L2, lineVectors())
	if _, err := f.Search([]float32{0, 0}, 0); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	f := buildFlat(t, L2, lineVectors())
	_, err := f.Search([]float32{0, 0, 0}, 1)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestSearch_TiesBreakByPosition(t *testing.T) {
	f := buildFlat(t, L2, [][]float32{{1, 0}, {0, 1}, {-1, 0}, {0, -1}})

	results, err := f.Search([]float32{0, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.Position != i {
			t.Errorf("rank %d: expected position %d for equal distances, got %d", i, i, r.Position)
		}
	}
}

func TestSearch_Cosine(t *testing.T) {
	f := buildFlat(t, Cosine, [][]float32{{0, 5}, {3, 0}, {1, 1}, {0, 0}})

	results, err := f.Search([]float32{2, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Position != 1 || math.Abs(results[0].Distance) > 1e-9 {
		t.Errorf("expected parallel vector first at distance 0, got %+v", results[0])
	}
	if results[1].Position != 2 {
		t.Errorf("expected diagonal vector second, got %+v", results[1])
	}
	// orthogonal and zero vectors both sit at distance 1, position breaks the tie
	if results[2].Position != 0 || results[3].Position != 3 {
		t.Errorf("unexpected tail order: %+v", results[2:])
	}
	if math.Abs(results[3].Distance-1) > 1e-9 {
		t.Errorf("expected zero vector at distance 1, got %f", results[3].Distance)
	}
}

func TestBuild_Errors(t *testing.T) {
	f := NewFlat(0, L2)
	if err := f.Build([]string{"a"}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
	if err := f.Build(nil, [][]float32{{1, 2}, {1}}); err == nil {
		t.Error("expected inconsistent dimension error")
	}

	fixed := NewFlat(3, L2)
	if err := fixed.Build(nil, [][]float32{{1, 2}}); err == nil {
		t.Error("expected declared dimension to be enforced")
	}
}

func TestParseMetric(t *testing.T) {
	if m, err := ParseMetric(""); err != nil || m != L2 {
		t.Errorf("expected default l2, got %s %v", m, err)
	}
	if m, err := ParseMetric("cosine"); err != nil || m != Cosine {
		t.Errorf("expected cosine, got %s %v", m, err)
	}
	if _, err := ParseMetric("ip"); err == nil {
		t.Error("expected error for unknown metric")
	}
}
