package consensus

import "fmt"

// InsufficientNodesError is returned by selections attempted while fewer
// validators than the minimum quorum are registered.
type InsufficientNodesError struct {
	Required  int
	Available int
}

// Error ...
func (e *InsufficientNodesError) Error() string {
	return fmt.Sprintf("insufficient nodes for consensus: required %d, available %d",
		e.Required, e.Available)
}

// IsInsufficientNodes checks that an error is an InsufficientNodesError.
func IsInsufficientNodes(err error) bool {
	_, ok := err.(*InsufficientNodesError)
	return ok
}
