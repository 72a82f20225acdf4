package domain

import "fmt"

// StatusState enumerates the completion states of an executed unit.
type StatusState int

const (
	// StatePending means the unit has not finished a run yet.
	StatePending StatusState = iota
	// StateOk means the last run reached normal completion.
	StateOk
	// StateFailed means the last run raised; the error is kept in the Status.
	StateFailed
)

// String returns the lower-case name of the state.
func (s StatusState) String() string {
	switch s {
	case StateOk:
		return "ok"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Status is the tagged completion result of running a unit:
// Pending, Ok, or Failed carrying the error that stopped execution.
// The zero value is Pending.
type Status struct {
	state StatusState
	err   error
}

// Pending returns the status of a unit that has not completed.
func Pending() Status { return Status{state: StatePending} }

// Ok returns the status of a unit that ran to completion.
func Ok() Status { return Status{state: StateOk} }

// Failed returns the status of a unit whose run raised err.
// A nil err is recorded as ErrExecution so the payload is never empty.
func Failed(err error) Status {
	if err == nil {
		err = ErrExecution
	}
	return Status{state: StateFailed, err: err}
}

// State returns the tag of the status.
func (s Status) State() StatusState { return s.state }

// IsPending reports whether no run has completed.
func (s Status) IsPending() bool { return s.state == StatePending }

// IsOk reports whether the last run completed normally.
func (s Status) IsOk() bool { return s.state == StateOk }

// IsFailed reports whether the last run raised.
func (s Status) IsFailed() bool { return s.state == StateFailed }

// Err returns the stored failure, or nil unless the status is Failed.
func (s Status) Err() error { return s.err }

// String implements fmt.Stringer.
func (s Status) String() string {
	if s.state == StateFailed {
		return fmt.Sprintf("failed(%v)", s.err)
	}
	return s.state.String()
}
