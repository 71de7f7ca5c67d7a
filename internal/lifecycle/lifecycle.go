// Package lifecycle is the task state machine: which actions are legal from
// which states, and where they lead.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/tgienger/pmt/internal/models"
)

// ErrInvalidTransition is returned when an action is requested from a state
// it cannot be applied to
var ErrInvalidTransition = errors.New("invalid transition")

// Action is a lifecycle transition a user can request
type Action string

const (
	Start   Action = "start"
	Finish  Action = "finish"
	Approve Action = "approve"
	Reject  Action = "reject"
)

// All lists every lifecycle action
var All = []Action{Start, Finish, Approve, Reject}

// Initial is the state of a newly created task
const Initial = models.StateNotStarted

type edge struct {
	from []models.TaskState
	to   models.TaskState
}

// finish lands on WAITING_FOR_APPROVAL, never on FINISHED.
var table = map[Action]edge{
	Start:   {from: []models.TaskState{models.StateNotStarted, models.StateRejected}, to: models.StateInProgress},
	Finish:  {from: []models.TaskState{models.StateInProgress}, to: models.StateWaitingForApproval},
	Approve: {from: []models.TaskState{models.StateWaitingForApproval}, to: models.StateApproved},
	Reject:  {from: []models.TaskState{models.StateWaitingForApproval}, to: models.StateRejected},
}

// TransitionError describes a rejected transition
type TransitionError struct {
	Action Action
	From   models.TaskState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a task that is %s", e.Action, e.From.Label())
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Legal reports whether action may be applied to a task in state
func Legal(state models.TaskState, action Action) bool {
	e, ok := table[action]
	if !ok {
		return false
	}
	for _, s := range e.from {
		if s == state {
			return true
		}
	}
	return false
}

// Next returns the state action leads to from state
func Next(state models.TaskState, action Action) (models.TaskState, error) {
	if !Legal(state, action) {
		return state, &TransitionError{Action: action, From: state}
	}
	return table[action].to, nil
}

// Apply returns a copy of task with action applied. The input task is left
// untouched, including on error. now stamps the start and completion times.
func Apply(task models.Task, action Action, now time.Time) (models.Task, error) {
	next, err := Next(task.State, action)
	if err != nil {
		return task, err
	}

	task.State = next
	switch action {
	case Start:
		task.StartTimestamp = models.TimestampPtr(now)
	case Approve:
		task.CompletionTimestamp = models.TimestampPtr(now)
	}
	return task, nil
}

// Actions returns the actions legal from state, in table order
func Actions(state models.TaskState) []Action {
	var out []Action
	for _, a := range All {
		if Legal(state, a) {
			out = append(out, a)
		}
	}
	return out
}

// ParseAction converts a string into an Action
func ParseAction(s string) (Action, error) {
	for _, a := range All {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Result returns the message shown after action succeeds
func (a Action) Result() string {
	switch a {
	case Start:
		return "Task started"
	case Finish:
		return "Task marked as finished and waiting for approval"
	case Approve:
		return "Task approved"
	case Reject:
		return "Task rejected"
	}
	return "Task updated"
}
