package vectorindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ragqa/internal/domain"
)

func sampleIndex(t *testing.T) *Flat {
	t.Helper()
	f := NewFlat(0, L2)
	err := f.Build(
		[]string{"c0", "", "c2"},
		[][]float32{{0.5, -1}, {2, 3.25}, {0, 0}},
	)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestSaveLoad_Engines(t *testing.T) {
	for _, engine := range []Engine{EngineFlat, EngineBolt} {
		t.Run(string(engine), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index."+string(engine))
			orig := sampleIndex(t)

			if err := Save(path, engine, orig); err != nil {
				t.Fatalf("save: %v", err)
			}
			loaded, err := Load(path, engine, L2)
			if err != nil {
				t.Fatalf("load: %v", err)
			}

			if loaded.Len() != 3 || loaded.Dimension() != 2 {
				t.Fatalf("expected 3 rows of dim 2, got %d rows of dim %d", loaded.Len(), loaded.Dimension())
			}
			for pos := 0; pos < orig.Len(); pos++ {
				if loaded.RowID(pos) != orig.RowID(pos) {
					t.Errorf("row %d: expected id %q, got %q", pos, orig.RowID(pos), loaded.RowID(pos))
				}
				want, _ := orig.Row(pos)
				got, _ := loaded.Row(pos)
				for j := range want {
					if got[j] != want[j] {
						t.Errorf("row %d col %d: expected %f, got %f", pos, j, want[j], got[j])
					}
				}
			}
		})
	}
}

func TestSaveLoad_EmptyKeepsDimension(t *testing.T) {
	for _, engine := range []Engine{EngineFlat, EngineBolt} {
		t.Run(string(engine), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "empty")
			f := NewFlat(8, Cosine)
			if err := f.Build(nil, nil); err != nil {
				t.Fatal(err)
			}
			if err := Save(path, engine, f); err != nil {
				t.Fatal(err)
			}
			loaded, err := Load(path, engine, Cosine)
			if err != nil {
				t.Fatal(err)
			}
			if loaded.Len() != 0 || loaded.Dimension() != 8 {
				t.Errorf("expected empty index of dim 8, got %d rows dim %d", loaded.Len(), loaded.Dimension())
			}
			if loaded.Metric() != Cosine {
				t.Errorf("expected metric from caller, got %s", loaded.Metric())
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	for _, engine := range []Engine{EngineFlat, EngineBolt} {
		_, err := Load(filepath.Join(t.TempDir(), "absent"), engine, L2)
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			t.Errorf("%s: expected ErrIndexUnavailable, got %v", engine, err)
		}
	}
}

func TestLoad_CorruptFlat(t *testing.T) {
	good, err := sampleIndex(t).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"short", good[:10]},
		{"magic", append([]byte("FAIS"), good[4:]...)},
		{"truncated", good[:len(good)-3]},
		{"trailing", append(append([]byte(nil), good...), 0, 0)},
		{"huge_count", func() []byte {
			b := append([]byte(nil), good...)
			b[12], b[13], b[14], b[15] = 0xff, 0xff, 0xff, 0x7f
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index.bin")
			if err := os.WriteFile(path, tt.data, 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path, EngineFlat, L2); !errors.Is(err, domain.ErrIndexUnavailable) {
				t.Errorf("expected ErrIndexUnavailable, got %v", err)
			}
		})
	}
}

func TestLoad_BoltRejectsFlatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	if err := Save(path, EngineFlat, sampleIndex(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, EngineBolt, L2); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}
