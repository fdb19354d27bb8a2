package port

import "ragqa/internal/domain"

// LinkBuilder turns a retrieved chunk into a user-facing link.
type LinkBuilder interface {
	Link(chunk domain.Chunk) domain.Link
}
