package orm

import "fmt"

// StaleError reports access to in-memory state that is no longer current:
// an entity expired by a commit, detached from its session, or whose row
// vanished underneath it. The fix is always an explicit reload (Get or
// Refresh), never silent background I/O.
type StaleError struct {
	Table  string
	PK     uint64
	Reason string
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("orm: stale state for row %d of table %q: %s", e.PK, e.Table, e.Reason)
}

// ImplicitIOError reports that an operation would have triggered implicit
// database I/O where the mapping forbids it (the raise loading strategy).
// Relations configured this way must be populated explicitly.
type ImplicitIOError struct {
	Table    string
	PK       uint64
	Relation string
}

func (e *ImplicitIOError) Error() string {
	return fmt.Sprintf(
		"orm: relation %q of row %d in table %q would trigger implicit I/O; load it explicitly",
		e.Relation, e.PK, e.Table)
}
