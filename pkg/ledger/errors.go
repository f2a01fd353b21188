package ledger

import "fmt"

// ValidationError rejects malformed input before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// UniquenessViolation reports a duplicate payment occurrence. Idempotent
// generation treats a conflict on the same computed due date as a no-op;
// any other conflict is surfaced with this error.
type UniquenessViolation struct {
	BillID  int64
	DueDate string
}

func (e *UniquenessViolation) Error() string {
	return fmt.Sprintf("occurrence already exists for bill %d on %s", e.BillID, e.DueDate)
}

// InvalidStateTransition reports a forbidden occurrence state change,
// such as ignoring an occurrence that has been paid. Not retried.
type InvalidStateTransition struct {
	From string
	To   string
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// InconsistentBalanceState reports that a recomputation detected data that
// cannot be reconciled, e.g. a bill's total_debt going negative. Surfaced
// and logged, never silently repaired.
type InconsistentBalanceState struct {
	Detail string
}

func (e *InconsistentBalanceState) Error() string {
	return fmt.Sprintf("inconsistent balance state: %s", e.Detail)
}
