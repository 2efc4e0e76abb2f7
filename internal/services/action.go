package services

import (
	"coinc/internal/core"
	"coinc/internal/feed"
)

// ActionState is one step of a mutation request.
type ActionState string

const (
	StateIdle       ActionState = "idle"
	StateValidating ActionState = "validating"
	StateRejected   ActionState = "rejected"
	StateWriting    ActionState = "writing"
	StateCommitted  ActionState = "committed"
	StateFailed     ActionState = "failed"
)

// User facing outcome messages.
const (
	MsgInvalidForm  = "Invalid form data."
	MsgAdded        = "Transaction added successfully."
	MsgAddFailed    = "Failed to add transaction."
	MsgMissingID    = "Transaction ID is missing."
	MsgDeleted      = "Transaction deleted successfully."
	MsgDeleteFailed = "Failed to delete transaction."
)

// ActionResult is the outcome of a create or delete action. Changed names
// the scope whose records changed; its Month is empty when only the owner
// is known.
type ActionResult struct {
	State       ActionState
	Message     string
	FieldErrors core.FieldErrors
	Transaction *core.Transaction
	Changed     *feed.Scope
	Trace       []ActionState
}

// OK reports whether the action committed.
func (r ActionResult) OK() bool { return r.State == StateCommitted }

func (r *ActionResult) enter(s ActionState) {
	r.State = s
	r.Trace = append(r.Trace, s)
}

func newResult() ActionResult {
	r := ActionResult{}
	r.enter(StateIdle)
	return r
}
