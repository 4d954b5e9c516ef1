package models

import "fmt"

// ReferenceNotFoundError reports a direct or deferred reference to an id that
// is not declared in the model.
type ReferenceNotFoundError struct {
	// Kind is the kind of entity that was looked up (page, template, ...)
	Kind string

	// ID is the missing identifier
	ID string

	// Referrer is the id of the entity holding the reference
	Referrer string
}

func (e *ReferenceNotFoundError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
	}
	return fmt.Sprintf("%s %q referenced by %q not found", e.Kind, e.ID, e.Referrer)
}

// InvalidDeclarationError reports a violated structural invariant of the
// declared model.
type InvalidDeclarationError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *InvalidDeclarationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid %s declaration: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.ID, e.Reason)
}

// ModificationConflictError reports a persisted entity that exists under a
// declared id but belongs to another site.
type ModificationConflictError struct {
	Kind  string
	ID    string
	Site  string
	Owner string
}

func (e *ModificationConflictError) Error() string {
	return fmt.Sprintf("%s %q declared by site %q is owned by site %q", e.Kind, e.ID, e.Site, e.Owner)
}

// BackendError wraps a failure surfaced by the backend adapter.
type BackendError struct {
	// Op is the adapter operation that failed (e.g. "create page")
	Op string

	// ID is the declared id being processed, if any
	ID string

	Err error
}

func (e *BackendError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("backend %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func invalid(kind, id, format string, args ...any) error {
	return &InvalidDeclarationError{Kind: kind, ID: id, Reason: fmt.Sprintf(format, args...)}
}
