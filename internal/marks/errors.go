package marks

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine. All of them abort the enclosing store
// transaction; only ErrConflict is worth retrying from the caller's side.
var (
	// ErrPermissionDenied means the caller's effective role over the
	// resource is below what the operation requires (or absent entirely).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound means the resource does not exist, is soft-deleted, or
	// the public token has been revoked.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName means a scoped uniqueness constraint was violated:
	// folder name within (owner, parent), collection or tag name within
	// owner, or a membership row that already exists.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrConflict means the store detected a serialization conflict
	// (two writers raced). The operation had no effect and may be retried.
	ErrConflict = errors.New("transaction conflict")
)

// CycleError is returned when a folder move would make the folder its own
// ancestor. The hierarchy is left unchanged.
type CycleError struct {
	FolderID    string
	NewParentID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("moving folder %s under %s would create a cycle", e.FolderID, e.NewParentID)
}

// CrossOwnerError is returned when a folder move targets a parent belonging
// to a different owner.
type CrossOwnerError struct {
	FolderID    string
	NewParentID string
}

func (e *CrossOwnerError) Error() string {
	return fmt.Sprintf("folder %s and parent %s have different owners", e.FolderID, e.NewParentID)
}

// OrphanedParentError is returned when restoring a folder whose immediate
// parent is still soft-deleted.
type OrphanedParentError struct {
	FolderID string
	ParentID string
}

func (e *OrphanedParentError) Error() string {
	return fmt.Sprintf("cannot restore folder %s: parent %s is deleted", e.FolderID, e.ParentID)
}

// IsRetryable reports whether the caller should retry the operation.
// Exactly the serialization-conflict errors qualify; business-rule errors
// never do.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
