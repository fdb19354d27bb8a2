package port

import (
	"context"

	"ragqa/internal/domain"
)

// TextExtractor reads text out of an encoded image payload. Failures are
// reported through the returned Extraction rather than an error return.
type TextExtractor interface {
	Extract(ctx context.Context, payload string) domain.Extraction
}
