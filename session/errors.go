package session

import "errors"

var (
	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyQuestion is returned for empty or whitespace-only questions.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrTurnInProgress is returned when a question arrives while another is being answered.
	ErrTurnInProgress = errors.New("a question is already being answered")

	// ErrLoadInProgress is returned when the index is still being built.
	ErrLoadInProgress = errors.New("documents are still being loaded")

	// ErrNoIndex is returned when a question arrives before any documents were loaded.
	ErrNoIndex = errors.New("no documents loaded")

	// ErrAlreadyLoaded is returned when loading into a session that has an index.
	ErrAlreadyLoaded = errors.New("documents already loaded")

	// ErrSessionTerminated is returned by every operation after Exit.
	ErrSessionTerminated = errors.New("session terminated")

	// ErrContextTooSmall is returned when relevant passages were found but
	// none fits the context budget.
	ErrContextTooSmall = errors.New("no relevant passage fits the context budget")

	// ErrCanceled wraps the context error of a question that was interrupted.
	ErrCanceled = errors.New("canceled")

	// ErrInvalidTopK is returned for a non-positive result count.
	ErrInvalidTopK = errors.New("topK must be positive")

	// ErrInvalidMinScore is returned for a threshold outside [-1, 1].
	ErrInvalidMinScore = errors.New("minScore must be between -1 and 1")
)
