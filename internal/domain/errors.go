package domain

import "errors"

var (
	// ErrStoreUnavailable means the chunk file is missing or malformed.
	ErrStoreUnavailable = errors.New("chunk store unavailable")

	// ErrIndexUnavailable means the vector index is missing, corrupt, or does
	// not line up with the chunk store or the embedder.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrImageDecode means the image payload could not be decoded or read.
	// The answerer recovers from it.
	ErrImageDecode = errors.New("image decode failed")

	// ErrEncoding means the query could not be embedded.
	ErrEncoding = errors.New("query encoding failed")
)
