package core

import "fmt"

// Missing-field names reported by IncompleteExtractionError.
const (
	MissingStore = "store"
	MissingDate  = "date"
	MissingItems = "items"
	MissingTotal = "total"
)

// ValidationError reports a category pair that could not be resolved
// against the taxonomy, even after fuzzy correction.
type ValidationError struct {
	Category    string
	Subcategory string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unresolved category pair %s:%s", e.Category, e.Subcategory)
}

// IncompleteExtractionError reports the first required field that was
// still missing after a full parse of the model response.
type IncompleteExtractionError struct {
	Missing string
}

func (e *IncompleteExtractionError) Error() string {
	return fmt.Sprintf("incomplete extraction: missing %s", e.Missing)
}

// OperationFailedError wraps a storage-layer failure raised while a
// transaction was open.
type OperationFailedError struct {
	Op  string
	Err error
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OperationFailedError) Unwrap() error {
	return e.Err
}
