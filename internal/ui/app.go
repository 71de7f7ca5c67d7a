package ui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/pmt/internal/api"
	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
	"github.com/tgienger/pmt/internal/ui/styles"
	"github.com/tgienger/pmt/internal/ui/views"
)

// Currently active view
type View int

const (
	ViewAuth View = iota
	ViewProjects
	ViewBoard
	ViewTimeline
	ViewTask
	ViewUsers
)

// statusTimeout is how long a status line stays up
const statusTimeout = 4 * time.Second

type clearStatusMsg struct {
	id int
}

// restoredMsg carries the project that was open when the app last ran
type restoredMsg struct {
	project models.Project
}

type App struct {
	deps        *views.Deps
	currentView View
	styles      *styles.Styles

	auth        *views.AuthView
	projectList *views.ProjectListView
	board       *views.BoardView
	timeline    *views.TimelineView
	task        *views.TaskView
	users       *views.UsersView

	// project is the open project; returnTo is where the task view goes back to
	project  *models.Project
	returnTo View

	status   views.StatusMsg
	statusID int

	width  int
	height int
}

// Creates a new application
func NewApp(deps *views.Deps) *App {
	return &App{
		deps:        deps,
		currentView: ViewAuth,
		styles:      styles.NewStyles(),
	}
}

// CurrentView returns the view on screen
func (a *App) CurrentView() View {
	return a.currentView
}

func (a *App) Init() tea.Cmd {
	if !a.deps.Session.Authenticated() {
		return a.showAuth()
	}
	return tea.Batch(a.showProjects(), a.restore)
}

// restore reopens the last active project: the local session first, then the
// one the server remembers for the user
func (a *App) restore() tea.Msg {
	ctx := a.deps.Ctx
	actor := a.deps.Session.Identity()

	id := a.deps.Session.ActiveProject()
	if id == "" {
		remote, err := a.deps.API.ActiveProject(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, api.ErrSessionExpired) {
				return views.Failed{Err: err}
			}
			a.deps.Log.Warn("fetching active project", "error", err)
			return nil
		}
		id = remote
	}
	if id == "" {
		return nil
	}

	project, err := a.deps.API.Project(ctx, id)
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			return views.Failed{Err: err}
		}
		a.deps.Log.Warn("restoring active project", "project", id, "error", err)
		return nil
	}
	if len(policy.VisibleProjects([]models.Project{*project}, actor)) == 0 {
		return nil
	}
	return restoredMsg{project: *project}
}

func (a *App) resize() tea.Cmd {
	width, height := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: width, Height: height}
	}
}

func (a *App) showAuth() tea.Cmd {
	a.currentView = ViewAuth
	a.auth = views.NewAuthView(a.deps)
	a.project = nil
	a.board, a.timeline, a.task, a.users = nil, nil, nil, nil
	return tea.Batch(a.auth.Init(), a.resize())
}

func (a *App) showProjects() tea.Cmd {
	a.currentView = ViewProjects
	if a.projectList == nil {
		a.projectList = views.NewProjectListView(a.deps)
	}
	return tea.Batch(a.projectList.Init(), a.resize())
}

func (a *App) openProject(project models.Project) tea.Cmd {
	a.project = &project
	a.currentView = ViewBoard
	a.board = views.NewBoardView(a.deps, project)

	// Save as last opened project
	if err := a.deps.Session.SetActiveProject(project.ID); err != nil {
		a.deps.Log.Warn("saving active project", "project", project.ID, "error", err)
	}

	return tea.Batch(a.board.Init(), a.resize(), a.syncActiveProject(project.ID))
}

// syncActiveProject records the open project on the server. Failure only logs.
func (a *App) syncActiveProject(projectID string) tea.Cmd {
	ctx, log := a.deps.Ctx, a.deps.Log
	userID := a.deps.Session.Identity().ID
	return func() tea.Msg {
		if err := a.deps.API.SetActiveProject(ctx, userID, projectID); err != nil {
			log.Warn("syncing active project", "project", projectID, "error", err)
		}
		return nil
	}
}

// logout ends the session and returns to the login screen
func (a *App) logout(status views.StatusMsg) tea.Cmd {
	if err := a.deps.Session.Logout(); err != nil {
		a.deps.Log.Error("clearing session", "error", err)
	}
	a.projectList = nil
	return tea.Batch(a.showAuth(), a.setStatus(status))
}

func (a *App) setStatus(status views.StatusMsg) tea.Cmd {
	a.status = status
	a.statusID++
	id := a.statusID
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// One line is kept for the status bar
		msg.Height = max(msg.Height-1, 0)
		// Always update project list size since it persists
		if a.projectList != nil {
			a.projectList.Update(msg)
		}
		return a, a.forward(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

	case views.StatusMsg:
		return a, a.setStatus(msg)

	case clearStatusMsg:
		if msg.id == a.statusID {
			a.status = views.StatusMsg{}
		}
		return a, nil

	case views.Failed:
		if errors.Is(msg.Err, api.ErrSessionExpired) {
			a.deps.Log.Warn("session expired")
			return a, a.logout(views.StatusMsg{Text: api.Message(msg.Err), Err: true})
		}
		a.deps.Log.Error("request failed", "view", a.currentView, "error", msg.Err)
		text := api.Message(msg.Err)
		if api.IsTransient(msg.Err) {
			text += " · ctrl+r to retry"
		}
		return a, a.setStatus(views.StatusMsg{Text: text, Err: true})

	case views.LoggedIn:
		a.projectList = nil
		return a, tea.Batch(a.showProjects(), a.restore)

	case views.LogoutRequested:
		a.deps.Log.Info("logged out", "user", a.deps.Session.Identity().ID)
		return a, a.logout(views.StatusMsg{Text: "Logged out"})

	case restoredMsg:
		if a.currentView != ViewProjects {
			return a, nil
		}
		return a, a.openProject(msg.project)

	case views.SelectedProject:
		return a, a.openProject(msg.Project)

	case views.BackToProjects:
		a.project = nil
		a.board, a.timeline, a.task, a.users = nil, nil, nil, nil
		if err := a.deps.Session.SetActiveProject(""); err != nil {
			a.deps.Log.Warn("clearing active project", "error", err)
		}
		return a, a.showProjects()

	case views.ShowBoard:
		if a.project == nil {
			return a, nil
		}
		a.currentView = ViewBoard
		a.board = views.NewBoardView(a.deps, *a.project)
		return a, tea.Batch(a.board.Init(), a.resize())

	case views.ShowTimeline:
		if a.project == nil {
			return a, nil
		}
		a.currentView = ViewTimeline
		a.timeline = views.NewTimelineView(a.deps, *a.project)
		return a, tea.Batch(a.timeline.Init(), a.resize())

	case views.OpenTask:
		a.returnTo = a.currentView
		a.currentView = ViewTask
		a.task = views.NewTaskView(a.deps, msg.TaskID)
		return a, tea.Batch(a.task.Init(), a.resize())

	case views.CloseTask:
		a.task = nil
		switch a.returnTo {
		case ViewTimeline:
			if a.timeline != nil {
				a.currentView = ViewTimeline
				return a, tea.Batch(a.timeline.Init(), a.resize())
			}
		case ViewBoard:
			if a.board != nil {
				a.currentView = ViewBoard
				return a, tea.Batch(a.board.Init(), a.resize())
			}
		}
		return a, a.showProjects()

	case views.ShowUsers:
		if !policy.CanManageUsers(a.deps.Session.Identity()) {
			return a, nil
		}
		a.currentView = ViewUsers
		a.users = views.NewUsersView(a.deps)
		return a, tea.Batch(a.users.Init(), a.resize())
	}

	return a, a.forward(msg)
}

// forward hands msg to the view on screen
func (a *App) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case ViewAuth:
		if a.auth != nil {
			_, cmd = a.auth.Update(msg)
		}
	case ViewProjects:
		if _, ok := msg.(tea.WindowSizeMsg); ok {
			return nil
		}
		if a.projectList != nil {
			_, cmd = a.projectList.Update(msg)
		}
	case ViewBoard:
		if a.board != nil {
			_, cmd = a.board.Update(msg)
		}
	case ViewTimeline:
		if a.timeline != nil {
			_, cmd = a.timeline.Update(msg)
		}
	case ViewTask:
		if a.task != nil {
			_, cmd = a.task.Update(msg)
		}
	case ViewUsers:
		if a.users != nil {
			_, cmd = a.users.Update(msg)
		}
	}
	return cmd
}

func (a *App) View() string {
	var content string
	switch a.currentView {
	case ViewAuth:
		if a.auth != nil {
			content = a.auth.View()
		}
	case ViewBoard:
		if a.board != nil {
			content = a.board.View()
		}
	case ViewTimeline:
		if a.timeline != nil {
			content = a.timeline.View()
		}
	case ViewTask:
		if a.task != nil {
			content = a.task.View()
		}
	case ViewUsers:
		if a.users != nil {
			content = a.users.View()
		}
	default:
		if a.projectList != nil {
			content = a.projectList.View()
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, content, a.renderStatus())
}

func (a *App) renderStatus() string {
	s := a.styles
	if a.status.Text == "" {
		actor := a.deps.Session.Identity()
		if actor.IsZero() {
			return s.StatusBar.Render("")
		}
		return s.StatusBar.Render(actor.Name + " · " + string(actor.Role))
	}
	if a.status.Err {
		return s.StatusError.Render(a.status.Text)
	}
	return s.StatusOK.Render(a.status.Text)
}
