package generate

import "errors"

var (
	// ErrContextOverflow means the prompt plus the new-token budget does not fit the context window.
	ErrContextOverflow = errors.New("context window exceeded")
	// ErrUnexpectedSentinel means the model emitted a sentinel the turn does not stop on.
	ErrUnexpectedSentinel = errors.New("unexpected sentinel")
	// ErrAbandoned means the turn was closed or its context ended before it finished.
	ErrAbandoned = errors.New("turn abandoned")
)
