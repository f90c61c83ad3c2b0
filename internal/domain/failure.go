package domain

import "fmt"

// FailureKind is the closed classification of a failed generation
// attempt, produced at the Gemini boundary. The retry policy branches
// on the kind alone and never inspects error text.
type FailureKind string

const (
	// FailureQuota: the key hit its rate limit (HTTP 429 / RESOURCE_EXHAUSTED).
	// The key is cooled down and the attempt retried on another key.
	FailureQuota FailureKind = "quota_exhausted"

	// FailureTransient: any other call failure that may succeed on retry.
	FailureTransient FailureKind = "transient"

	// FailurePermanent: the model answered with explanatory text instead
	// of an image, or rejected the request outright. Retrying cannot help.
	FailurePermanent FailureKind = "permanent"

	// FailurePoolEmpty: no key is available at all (pool empty or every
	// key cooling down). The item fails immediately.
	FailurePoolEmpty FailureKind = "pool_empty"
)

// GenerationError is the tagged error returned by the generation
// collaborator. Message is already safe to surface in a task result.
type GenerationError struct {
	Kind    FailureKind
	Message string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %s", e.Kind, e.Message)
}

// NewGenerationError builds a tagged generation failure.
func NewGenerationError(kind FailureKind, format string, args ...any) *GenerationError {
	return &GenerationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
