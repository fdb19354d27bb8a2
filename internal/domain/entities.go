package domain

// Chunk is one retrievable passage. Its position in the loaded chunk slice is
// the row it occupies in the vector index.
type Chunk struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// Query is the caller input. Image holds a base64 payload, optionally in
// data-URL form.
type Query struct {
	Question string `json:"question"`
	Image    string `json:"image,omitempty"`
}

// HasImage reports whether the query carries an image payload.
func (q Query) HasImage() bool {
	return q.Image != ""
}

// Hit is a chunk resolved from a vector index position.
type Hit struct {
	Position int
	Chunk    Chunk
	Distance float64
}

type Answer struct {
	Answer string `json:"answer"`
	Links  []Link `json:"links"`
}

type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Extraction is the outcome of running OCR over an image payload.
type Extraction struct {
	Text string
	Err  error
}

// OK reports whether the extraction succeeded.
func (e Extraction) OK() bool {
	return e.Err == nil
}

// ExtractionFailed builds a failed extraction.
func ExtractionFailed(err error) Extraction {
	return Extraction{Err: err}
}
