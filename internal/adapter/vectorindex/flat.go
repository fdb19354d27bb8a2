package vectorindex

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// Metric selects how distance between two vectors is measured.
type Metric string

const (
	// L2 is squared Euclidean distance.
	L2 Metric = "l2"
	// Cosine is 1 - cosine similarity; zero vectors sit at distance 1.
	Cosine Metric = "cosine"
)

// ParseMetric validates a metric name.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case L2, Cosine:
		return Metric(name), nil
	case "":
		return L2, nil
	}
	return "", fmt.Errorf("vectorindex: unknown metric %q", name)
}

// Flat is an exact index that scores every row. Rows are addressed by the
// position they were built in; ids are carried only for consistency checks.
type Flat struct {
	metric Metric
	dim    int
	ids    []string
	vecs   [][]float32
	norms  []float64
}

// NewFlat creates an empty index. A zero dim is taken from the first vector
// passed to Build.
func NewFlat(dim int, metric Metric) *Flat {
	if metric == "" {
		metric = L2
	}
	return &Flat{dim: dim, metric: metric}
}

// Build loads ids and vectors in row order. ids may be nil.
func (f *Flat) Build(ids []string, vectors [][]float32) error {
	if ids == nil {
		ids = make([]string, len(vectors))
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("vectorindex: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	dim := f.dim
	if dim == 0 && len(vectors) > 0 {
		dim = len(vectors[0])
	}
	norms := make([]float64, len(vectors))
	for j, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vectorindex: row %d has dimension %d, want %d", j, len(v), dim)
		}
		norms[j] = magnitude(v)
	}
	f.dim = dim
	f.ids = append([]string(nil), ids...)
	f.vecs = append([][]float32(nil), vectors...)
	f.norms = norms
	return nil
}

// Search returns the k closest rows, closest first. Equal distances are
// ordered by row position so results are reproducible.
func (f *Flat) Search(query []float32, k int) ([]port.Neighbor, error) {
	if k < 1 {
		return nil, fmt.Errorf("vectorindex: k must be at least 1, got %d", k)
	}
	if len(f.vecs) == 0 {
		return []port.Neighbor{}, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query dimension %d != index dimension %d", domain.ErrIndexUnavailable, len(query), f.dim)
	}

	qm := magnitude(query)
	scored := make([]port.Neighbor, len(f.vecs))
	for j, v := range f.vecs {
		scored[j] = port.Neighbor{Position: j, Distance: f.distance(query, qm, v, f.norms[j])}
	}

	slices.SortFunc(scored, func(a, b port.Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (f *Flat) Dimension() int { return f.dim }

func (f *Flat) Len() int { return len(f.vecs) }

func (f *Flat) Metric() Metric { return f.metric }

// RowID returns the id stored for a row, or "" when none was stored.
func (f *Flat) RowID(position int) string {
	if position < 0 || position >= len(f.ids) {
		return ""
	}
	return f.ids[position]
}

// Row returns the vector stored at position.
func (f *Flat) Row(position int) ([]float32, bool) {
	if position < 0 || position >= len(f.vecs) {
		return nil, false
	}
	return f.vecs[position], true
}

func (f *Flat) distance(q []float32, qm float64, v []float32, vm float64) float64 {
	switch f.metric {
	case Cosine:
		if qm == 0 || vm == 0 {
			return 1
		}
		return 1 - dot(q, v)/(qm*vm)
	default:
		var sum float64
		for i := range q {
			d := float64(q[i]) - float64(v[i])
			sum += d * d
		}
		return sum
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func magnitude(v []float32) float64 { return math.Sqrt(dot(v, v)) }
