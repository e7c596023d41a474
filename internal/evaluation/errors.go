package evaluation

import "fmt"

// SizingError is the terminal failure of the size search: no value of the
// named parameter, down to 1, fits in available memory. It indicates a
// configuration-hardware mismatch, not a bug, and is never retried.
type SizingError struct {
	Param string
}

func (e *SizingError) Error() string {
	return fmt.Sprintf(
		"the scorer cannot be evaluated on this hardware: even %s=1 exceeds available memory", e.Param)
}

// SlicingUnsupportedError is raised before a slice-size search when the
// scorer does not support slicing on the side(s) the inverse-relation
// configuration requires.
type SlicingUnsupportedError struct {
	BatchSize int
}

func (e *SlicingUnsupportedError) Error() string {
	return fmt.Sprintf(
		"the scorer cannot be evaluated on this hardware: batch_size=%d is too big and the scorer does not support slicing",
		e.BatchSize)
}
