package engine

import "context"

// Evaluator answers allow/deny questions from a set of policy sources.
type Evaluator interface {
	// Allow evaluates the policies against the input document. It returns
	// false with a nil error when no policy grants access; an error means
	// the policies could not be evaluated at all.
	Allow(ctx context.Context, policies []string, input map[string]any) (bool, error)
}
