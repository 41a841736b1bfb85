package memory

import (
	"errors"
	"fmt"
)

// ErrHooksDisabled is returned by RegisterHook when the manager was
// built without a reflexive dispatcher.
var ErrHooksDisabled = errors.New("reflexive hooks are disabled")

// ValidationError reports a malformed entry or query. It is surfaced
// to the caller immediately and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid memory entry: " + e.Reason
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NoProviderError reports that no registered provider supports the
// kind of the entry being stored.
type NoProviderError struct {
	Kind Kind
}

func (e *NoProviderError) Error() string {
	return fmt.Sprintf("no provider supports memory kind %q", e.Kind)
}

// EmbeddingError wraps a failure of the embedding capability.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// NewEmbeddingError wraps err as an EmbeddingError for operation op.
func NewEmbeddingError(op string, err error) *EmbeddingError {
	return &EmbeddingError{Op: op, Err: err}
}

// SummarizationError wraps a failure of the summarization capability.
// The consolidator catches these per cluster so one bad cluster never
// fails the batch.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// NewSummarizationError wraps err as a SummarizationError.
func NewSummarizationError(err error) *SummarizationError {
	return &SummarizationError{Err: err}
}
