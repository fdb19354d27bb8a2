package vectorindex

import (
	"fmt"
	"os"
	"path/filepath"

	"ragqa/internal/domain"
)

// Engine names a persisted index format.
type Engine string

const (
	// EngineFlat is a single binary blob, see MarshalBinary.
	EngineFlat Engine = "flat"
	// EngineBolt is a bbolt file with one key per row.
	EngineBolt Engine = "bolt"
)

// Load opens a persisted index. Every failure is reported as
// domain.ErrIndexUnavailable.
func Load(path string, engine Engine, metric Metric) (*Flat, error) {
	f := NewFlat(0, metric)
	switch engine {
	case EngineFlat, "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		if err := f.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrIndexUnavailable, path, err)
		}
	case EngineBolt:
		if err := loadBolt(path, f); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrIndexUnavailable, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", domain.ErrIndexUnavailable, engine)
	}
	return f, nil
}

// Save persists the index with the given engine.
func Save(path string, engine Engine, f *Flat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	switch engine {
	case EngineFlat, "":
		data, err := f.MarshalBinary()
		if err != nil {
			return err
		}
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	case EngineBolt:
		return WriteBolt(path, f)
	}
	return fmt.Errorf("vectorindex: unknown engine %q", engine)
}
