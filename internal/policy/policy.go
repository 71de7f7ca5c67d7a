// Package policy decides what an actor may do to a task. It is the only place
// that compares roles; views ask it both when rendering and right before
// sending a mutating request.
package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tgienger/pmt/internal/lifecycle"
	"github.com/tgienger/pmt/internal/models"
)

// ErrUnauthorized is returned when the actor's role or assignment does not
// allow the requested action
var ErrUnauthorized = errors.New("not authorized")

// Action is anything a user can do to a task
type Action string

const (
	Start   = Action(lifecycle.Start)
	Finish  = Action(lifecycle.Finish)
	Approve = Action(lifecycle.Approve)
	Reject  = Action(lifecycle.Reject)
	Delete  Action = "delete"
	Edit    Action = "edit"
	AddNote Action = "addNote"
)

// AllActions lists every task action in display order
var AllActions = []Action{Start, Finish, Approve, Reject, Edit, Delete, AddNote}

// Lifecycle returns the state machine action behind a, if any
func (a Action) Lifecycle() (lifecycle.Action, bool) {
	switch a {
	case Start, Finish, Approve, Reject:
		return lifecycle.Action(a), true
	}
	return "", false
}

// ActionSet is a set of permitted actions
type ActionSet map[Action]struct{}

func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// List returns the actions in display order
func (s ActionSet) List() []Action {
	var out []Action
	for _, a := range AllActions {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s ActionSet) String() string {
	parts := make([]string, 0, len(s))
	for _, a := range s.List() {
		parts = append(parts, string(a))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Policy holds the tunable parts of the rules. The zero value is the
// strict policy: only the assignee or an admin may start or finish a task.
type Policy struct {
	// DevelopersActForOthers lets any developer start or finish tasks
	// assigned to someone else.
	DevelopersActForOthers bool
}

// Default is the policy used by the package level functions
var Default = Policy{}

// PermittedActions returns what actor may do to task under the default policy
func PermittedActions(task models.Task, actor models.Identity) ActionSet {
	return Default.PermittedActions(task, actor)
}

// Authorize checks a single action under the default policy
func Authorize(task models.Task, actor models.Identity, action Action) error {
	return Default.Authorize(task, actor, action)
}

// PermittedActions returns what actor may do to task. It depends only on the
// task's state and assignee and the actor's id and role.
func (p Policy) PermittedActions(task models.Task, actor models.Identity) ActionSet {
	set := ActionSet{}
	if actor.IsZero() {
		return set
	}

	for _, la := range lifecycle.Actions(task.State) {
		if a := Action(la); p.allowed(task, actor, a) {
			set[a] = struct{}{}
		}
	}
	for _, a := range []Action{Edit, Delete, AddNote} {
		if p.allowed(task, actor, a) {
			set[a] = struct{}{}
		}
	}
	return set
}

// Authorize checks a single action. It returns nil, an error wrapping
// lifecycle.ErrInvalidTransition when the task's state does not allow the
// action, or an error wrapping ErrUnauthorized.
func (p Policy) Authorize(task models.Task, actor models.Identity, action Action) error {
	if la, ok := action.Lifecycle(); ok {
		if _, err := lifecycle.Next(task.State, la); err != nil {
			return err
		}
	}
	if actor.IsZero() || !p.allowed(task, actor, action) {
		return fmt.Errorf("%w: %s may not %s task %q", ErrUnauthorized, describe(actor), action, task.Name)
	}
	return nil
}

func (p Policy) allowed(task models.Task, actor models.Identity, action Action) bool {
	switch action {
	case Start, Finish:
		la, _ := action.Lifecycle()
		if !lifecycle.Legal(task.State, la) || !task.IsAssigned() {
			return false
		}
		if task.AssignedTo(actor.ID) || actor.Role == models.RoleAdmin {
			return true
		}
		return p.DevelopersActForOthers && actor.Role == models.RoleDeveloper
	case Approve, Reject:
		la, _ := action.Lifecycle()
		return lifecycle.Legal(task.State, la) && actor.Role == models.RoleAdmin
	case Delete:
		return actor.Role == models.RoleAdmin
	case AddNote:
		return slices.Contains(models.Roles, actor.Role)
	case Edit:
		// Any authenticated actor may open the edit form.
		return true
	}
	return false
}

func describe(actor models.Identity) string {
	if actor.IsZero() {
		return "anonymous"
	}
	if actor.Role == "" {
		return actor.Name
	}
	return fmt.Sprintf("%s (%s)", actor.Name, actor.Role)
}
