package train

import "errors"

var (
	// ErrModelRequired is returned when a model is not provided.
	ErrModelRequired = errors.New("model required")

	// ErrObjectiveRequired is returned when an objective is not provided.
	ErrObjectiveRequired = errors.New("objective required")

	// ErrOptimizerRequired is returned when an optimizer is not provided.
	ErrOptimizerRequired = errors.New("optimizer required")

	// ErrDatasetRequired is returned when a dataset is not provided.
	ErrDatasetRequired = errors.New("dataset required")

	// ErrRepositoryRequired is returned when an interaction repository is
	// not provided.
	ErrRepositoryRequired = errors.New("interaction repository required")

	// ErrInvalidEpochs is returned when epochs is <= 0
	ErrInvalidEpochs = errors.New("epochs must be greater than 0")
)
