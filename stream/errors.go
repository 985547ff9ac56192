package stream

import "errors"

var (
	// ErrTrainerRequired is returned when a trainer is not provided.
	ErrTrainerRequired = errors.New("trainer required")

	// ErrInteractionRepositoryRequired is returned when an interaction repository is not provided.
	ErrInteractionRepositoryRequired = errors.New("interaction repository required")

	// ErrSnapshotRepositoryRequired is returned when a snapshot repository is not provided.
	ErrSnapshotRepositoryRequired = errors.New("snapshot repository required")
)
