package coldstart

import "errors"

var (
	// ErrModelRequired is returned when a model is not provided.
	ErrModelRequired = errors.New("model required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbeddingMismatch is returned when the embedder response does not
	// line up with the submitted texts.
	ErrEmbeddingMismatch = errors.New("embedder response does not match request")
)
