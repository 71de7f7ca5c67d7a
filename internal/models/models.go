package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownRole      = errors.New("unknown role")
	ErrDuplicateMember  = errors.New("duplicate project member")
	ErrUnknownTaskState = errors.New("unknown task state")
)

// Role is the closed set of roles a user can hold
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleDeveloper Role = "DEVELOPER"
	RoleDevOps    Role = "DEVOPS"
)

// Roles lists every role in display order
var Roles = []Role{RoleAdmin, RoleDeveloper, RoleDevOps}

// ParseRole converts a backend role label into a Role
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleDeveloper, RoleDevOps:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// TaskState is a task's position in its lifecycle
type TaskState string

const (
	StateNotStarted         TaskState = "NOT_STARTED"
	StateInProgress         TaskState = "IN_PROGRESS"
	StateFinished           TaskState = "FINISHED"
	StateWaitingForApproval TaskState = "WAITING_FOR_APPROVAL"
	StateApproved           TaskState = "APPROVED"
	StateRejected           TaskState = "REJECTED"
	StateNeedsAdjustment    TaskState = "NEEDS_ADJUSTMENT"
)

// TaskStates lists every task state
var TaskStates = []TaskState{
	StateNotStarted,
	StateInProgress,
	StateFinished,
	StateWaitingForApproval,
	StateApproved,
	StateRejected,
	StateNeedsAdjustment,
}

// ParseTaskState converts a backend state label into a TaskState
func ParseTaskState(s string) (TaskState, error) {
	for _, st := range TaskStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTaskState, s)
}

// Label returns a human readable form of the state
func (s TaskState) Label() string {
	switch s {
	case StateNotStarted:
		return "Not started"
	case StateInProgress:
		return "In progress"
	case StateFinished:
		return "Finished"
	case StateWaitingForApproval:
		return "Waiting for approval"
	case StateApproved:
		return "Approved"
	case StateRejected:
		return "Rejected"
	case StateNeedsAdjustment:
		return "Needs adjustment"
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "ACTIVE"
	ProjectInactive ProjectStatus = "INACTIVE"
	ProjectFinished ProjectStatus = "FINISHED"
)

// ProjectStatuses lists the statuses in the order the projects view cycles them
var ProjectStatuses = []ProjectStatus{ProjectActive, ProjectInactive, ProjectFinished}

// UserRef is the short form of a user embedded in other records
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProjectRef is the short form of a project embedded in a task
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task represents a unit of work belonging to a project
type Task struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	Priority            Priority   `json:"priority"`
	State               TaskState  `json:"state"`
	Project             ProjectRef `json:"project"`
	AssignedUser        *UserRef   `json:"assignedUser,omitempty"`
	EstimatedTime       *int       `json:"estimatedTime,omitempty"` // hours
	CreationTimestamp   Timestamp  `json:"creationTimestamp"`
	StartTimestamp      *Timestamp `json:"startTimestamp,omitempty"`
	CompletionTimestamp *Timestamp `json:"completionTimestamp,omitempty"`
	AssignmentTimestamp *Timestamp `json:"assignmentTimestamp,omitempty"`
	HasUnreadNotes      bool       `json:"hasUnreadNotes"`
	NoteCount           int        `json:"noteCount"`
}

// IsAssigned reports whether the task has an assignee
func (t Task) IsAssigned() bool {
	return t.AssignedUser != nil && t.AssignedUser.ID != ""
}

// AssignedTo reports whether the task is assigned to the given user
func (t Task) AssignedTo(userID string) bool {
	return t.IsAssigned() && userID != "" && t.AssignedUser.ID == userID
}

// ReferenceTime is the date the task is scheduled on: its assignment time if
// set, otherwise its creation time
func (t Task) ReferenceTime() time.Time {
	if t.AssignmentTimestamp != nil && !t.AssignmentTimestamp.IsZero() {
		return t.AssignmentTimestamp.Time
	}
	return t.CreationTimestamp.Time
}

// TaskNote is a message attached to a task
type TaskNote struct {
	ID                    string    `json:"id"`
	TaskID                string    `json:"taskId"`
	UserID                string    `json:"userId"`
	UserName              string    `json:"userName"`
	NoteText              string    `json:"noteText"`
	IsAdminNote           bool      `json:"isAdminNote"` // fixed when the note is posted
	CreationTimestamp     Timestamp `json:"creationTimestamp"`
	ModificationTimestamp Timestamp `json:"modificationTimestamp"`
}

// AssignedUser is a project member entry
type AssignedUser struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Role                string    `json:"role"`
	AssignmentTimestamp Timestamp `json:"assignmentTimestamp"`
}

// Project represents a container of tasks with a set of members
type Project struct {
	ID                    string         `json:"id"`
	Name                  string         `json:"name"`
	Description           string         `json:"description"`
	Status                ProjectStatus  `json:"status"`
	OwnerID               string         `json:"ownerId,omitempty"`
	OwnerName             string         `json:"ownerName,omitempty"`
	CreationTimestamp     Timestamp      `json:"creationTimestamp"`
	ModificationTimestamp Timestamp      `json:"modificationTimestamp"`
	AssignedUsers         []AssignedUser `json:"assignedUsers"`
	MemberCount           int            `json:"memberCount"`
}

// HasMember reports whether the user is assigned to the project
func (p Project) HasMember(userID string) bool {
	for _, u := range p.AssignedUsers {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Validate checks the member list holds no duplicate user ids
func (p Project) Validate() error {
	seen := make(map[string]struct{}, len(p.AssignedUsers))
	for _, u := range p.AssignedUsers {
		if _, ok := seen[u.ID]; ok {
			return fmt.Errorf("%w: %s in project %s", ErrDuplicateMember, u.ID, p.ID)
		}
		seen[u.ID] = struct{}{}
	}
	return nil
}

// RoleRef is the role object embedded in a user record
type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is a team member as returned by the users endpoint
type User struct {
	ID                    string    `json:"id"`
	Email                 string    `json:"email"`
	Name                  string    `json:"name"`
	Role                  RoleRef   `json:"role"`
	Activated             bool      `json:"activated"`
	Hidden                bool      `json:"hidden"`
	CreationTimestamp     Timestamp `json:"creationTimestamp"`
	ModificationTimestamp Timestamp `json:"modificationTimestamp"`
}

// RoleName returns the user's role, or an empty Role if it is not recognised
func (u User) RoleName() Role {
	r, err := ParseRole(u.Role.Name)
	if err != nil {
		return ""
	}
	return r
}

// ActiveUsers keeps only users that belong in team listings
func ActiveUsers(users []User) []User {
	var out []User
	for _, u := range users {
		if u.Activated && !u.Hidden {
			out = append(out, u)
		}
	}
	return out
}

// Identity is the authenticated user the client acts as
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsZero reports whether no one is logged in
func (i Identity) IsZero() bool {
	return i.ID == ""
}
