package moderation

import "fmt"

// ValidationError reports malformed input. Nothing is written when one is
// returned.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "invalid moderation request: " + e.Detail
}

// ConflictError reports an attempt to apply a singleton action while one is
// already in effect. Existing is the record currently holding the slot.
type ConflictError struct {
	Existing Action
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already active (case %d)", e.Existing.Kind, e.Existing.ID)
}

// ReversalError reports a reversal with no matching active record.
type ReversalError struct {
	Kind Kind
}

func (e *ReversalError) Error() string {
	return fmt.Sprintf("no active %s to reverse", e.Kind)
}

// NotFoundError reports a lookup for a case ID with no match.
type NotFoundError struct {
	CaseID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("case %d not found", e.CaseID)
}
