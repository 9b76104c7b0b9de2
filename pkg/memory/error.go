package memory

import "strings"

// ValidationError reports every problem found with an input, not just the
// first one. Callers surface Problems to the user as-is.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Problems, "; ")
}
