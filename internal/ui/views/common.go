package views

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/pmt/internal/api"
	"github.com/tgienger/pmt/internal/lifecycle"
	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
	"github.com/tgienger/pmt/internal/session"
	"github.com/tgienger/pmt/internal/ui/styles"
)

// Backend is the part of the API client the views use
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)

	ProjectsByStatus(ctx context.Context, status models.ProjectStatus) ([]models.Project, error)
	Project(ctx context.Context, id string) (*models.Project, error)
	CreateProject(ctx context.Context, req api.ProjectRequest) (*models.Project, error)
	UpdateProject(ctx context.Context, id string, req api.ProjectRequest) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
	AssignMember(ctx context.Context, projectID, userID string) error
	RemoveMember(ctx context.Context, projectID, userID string) error
	SetProjectStatus(ctx context.Context, projectID string, status models.ProjectStatus) error

	ProjectTasks(ctx context.Context, projectID string) ([]models.Task, error)
	AssignedTasks(ctx context.Context, userID string) ([]models.Task, error)
	Task(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, req api.TaskRequest) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, req api.TaskUpdateRequest) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	AssignTask(ctx context.Context, taskID, userID string) (*models.Task, error)
	Transition(ctx context.Context, taskID string, action lifecycle.Action) (*models.Task, error)
	MarkNotesRead(ctx context.Context, taskID string) (*models.Task, error)

	Notes(ctx context.Context, taskID string) ([]models.TaskNote, error)
	AddNote(ctx context.Context, taskID string, req api.NoteRequest) (*models.TaskNote, error)

	Users(ctx context.Context) ([]models.User, error)
	SoftDeleteUser(ctx context.Context, id string) error
	ActiveProject(ctx context.Context, userID string) (string, error)
	SetActiveProject(ctx context.Context, userID, projectID string) error
}

// Settings is the local key/value store
type Settings interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// Deps is what every view needs. One instance is shared by all views.
type Deps struct {
	Ctx      context.Context
	API      Backend
	Session  *session.Session
	Policy   policy.Policy
	Settings Settings
	Log      *slog.Logger
	Now      func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) actor() models.Identity {
	return d.Session.Identity()
}

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// LoggedIn signals a successful login or registration
type LoggedIn struct{}

// LogoutRequested asks the app to end the session
type LogoutRequested struct{}

// SelectedProject opens a project's board
type SelectedProject struct {
	Project models.Project
}

// BackToProjects signals to go back to project list
type BackToProjects struct{}

// OpenTask opens the task detail view
type OpenTask struct {
	TaskID string
}

// CloseTask leaves the task detail view
type CloseTask struct{}

// ShowTimeline switches the open project to the week view
type ShowTimeline struct{}

// ShowBoard switches the open project to the board
type ShowBoard struct{}

// ShowUsers opens user administration
type ShowUsers struct{}

// StatusMsg is a transient line at the bottom of the screen
type StatusMsg struct {
	Text string
	Err  bool
}

// Failed reports an error from a backend call or a rejected action
type Failed struct {
	Err error
}

// actionDoneMsg follows a successful write; the view re-fetches on it
type actionDoneMsg struct {
	text string
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// Status shows a success message
func Status(text string) tea.Cmd {
	return emit(StatusMsg{Text: text})
}

// Fail reports err
func Fail(err error) tea.Cmd {
	return emit(Failed{Err: err})
}

// write runs a mutating backend call and reports success with text
func (d *Deps) write(text string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := d.Ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return Failed{Err: err}
		}
		return actionDoneMsg{text: text}
	}
}

// perform checks action against the freshest copy of task and, when allowed,
// sends it to the backend
func (d *Deps) perform(task models.Task, action policy.Action) tea.Cmd {
	actor := d.actor()
	if err := d.Policy.Authorize(task, actor, action); err != nil {
		d.Log.Warn("action rejected", "task", task.ID, "action", action, "user", actor.ID, "error", err)
		return Fail(err)
	}

	switch action {
	case policy.Delete:
		d.Log.Info("deleting task", "task", task.ID, "user", actor.ID)
		return d.write("Task deleted", func(ctx context.Context) error {
			return d.API.DeleteTask(ctx, task.ID)
		})
	}

	la, ok := action.Lifecycle()
	if !ok {
		return nil
	}
	d.Log.Info("transition", "task", task.ID, "action", la, "from", task.State, "user", actor.ID)
	return d.write(la.Result(), func(ctx context.Context) error {
		_, err := d.API.Transition(ctx, task.ID, la)
		return err
	})
}

// lifecycleKey maps a key to the policy action it triggers
func lifecycleKey(msg tea.KeyMsg) (policy.Action, bool) {
	switch msg.String() {
	case "s":
		return policy.Start, true
	case "f":
		return policy.Finish, true
	case "a":
		return policy.Approve, true
	case "r":
		return policy.Reject, true
	}
	return "", false
}

// actionHelp renders the lifecycle keys available for a task
func actionHelp(s *styles.Styles, allowed policy.ActionSet) []string {
	var parts []string
	for _, a := range []struct {
		action policy.Action
		key    string
	}{
		{policy.Start, "s"},
		{policy.Finish, "f"},
		{policy.Approve, "a"},
		{policy.Reject, "r"},
	} {
		if allowed.Has(a.action) {
			parts = append(parts, fmt.Sprintf("%s %s", s.HelpKey.Render(a.key), a.action))
		}
	}
	return parts
}

func helpLine(s *styles.Styles, parts ...string) string {
	return s.Help.Render(strings.Join(parts, " • "))
}

func hk(s *styles.Styles, key, desc string) string {
	return s.HelpKey.Render(key) + " " + desc
}

func stateBadge(s *styles.Styles, state models.TaskState) string {
	return s.Badge.Foreground(styles.StateColor(state)).Render(state.Label())
}

func truncate(str string, width int) string {
	if width <= 1 {
		return ""
	}
	r := []rune(str)
	if len(r) <= width {
		return str
	}
	return string(r[:width-1]) + "…"
}

func assigneeName(t models.Task) string {
	if t.AssignedUser == nil {
		return "unassigned"
	}
	if t.AssignedUser.Name != "" {
		return t.AssignedUser.Name
	}
	return t.AssignedUser.Email
}

// findTask returns the task with id from tasks
func findTask(tasks []models.Task, id string) (models.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}
