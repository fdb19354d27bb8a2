package chunkstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"ragqa/internal/domain"
)

const maxLineBytes = 8 << 20

// Store holds the corpus in index row order. It is read-only after Load.
type Store struct {
	chunks []domain.Chunk
}

// record mirrors one line of the chunk file. Pointers distinguish a missing
// text field from an empty one.
type record struct {
	Text   *string         `json:"text"`
	Source string          `json:"source"`
	ID     json.RawMessage `json:"id"`
	URL    string          `json:"url"`
}

// Load reads a JSON-lines chunk file.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer f.Close()

	store, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

// Read parses chunk records from r. Blank lines are skipped; any other line
// must be a JSON object with a string text field.
func Read(r io.Reader) (*Store, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var chunks []domain.Chunk
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrStoreUnavailable, lineNo, err)
		}
		if rec.Text == nil {
			return nil, fmt.Errorf("%w: line %d: missing text field", domain.ErrStoreUnavailable, lineNo)
		}

		id, err := decodeID(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrStoreUnavailable, lineNo, err)
		}

		chunks = append(chunks, domain.Chunk{
			ID:     id,
			Text:   *rec.Text,
			Source: rec.Source,
			URL:    rec.URL,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", domain.ErrStoreUnavailable, lineNo+1, err)
	}

	return &Store{chunks: chunks}, nil
}

// decodeID accepts string or numeric ids; ingestion tools emit both.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id must be a string or number")
	}
	return n.String(), nil
}

// New wraps chunks that are already in index row order.
func New(chunks []domain.Chunk) *Store {
	return &Store{chunks: append([]domain.Chunk(nil), chunks...)}
}

func (s *Store) Len() int {
	return len(s.chunks)
}

// At returns the chunk stored at an index row position.
func (s *Store) At(position int) (domain.Chunk, bool) {
	if position < 0 || position >= len(s.chunks) {
		return domain.Chunk{}, false
	}
	return s.chunks[position], true
}

// Chunks returns a copy of the corpus in row order.
func (s *Store) Chunks() []domain.Chunk {
	return append([]domain.Chunk(nil), s.chunks...)
}

// Texts returns chunk texts in row order.
func (s *Store) Texts() []string {
	texts := make([]string, len(s.chunks))
	for i, c := range s.chunks {
		texts[i] = c.Text
	}
	return texts
}

// IDs returns chunk ids in row order.
func (s *Store) IDs() []string {
	ids := make([]string, len(s.chunks))
	for i, c := range s.chunks {
		ids[i] = c.ID
	}
	return ids
}
