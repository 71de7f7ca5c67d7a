package views

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/pmt/internal/api"
	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
	"github.com/tgienger/pmt/internal/ui/keys"
	"github.com/tgienger/pmt/internal/ui/styles"
)

// SettingProjectFilter remembers the status tab of the project list
const SettingProjectFilter = "project_filter"

type projectItem struct {
	project models.Project
}

func (i projectItem) Title() string       { return i.project.Name }
func (i projectItem) Description() string { return i.project.Description }
func (i projectItem) FilterValue() string { return i.project.Name }

type projectDelegate struct {
	styles *styles.Styles
	width  int
}

func (d projectDelegate) Height() int                               { return 2 }
func (d projectDelegate) Spacing() int                              { return 1 }
func (d projectDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d projectDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	p, ok := item.(projectItem)
	if !ok {
		return
	}

	selected := index == m.Index()
	width := max(d.width-4, 20)

	var titleStyle, descStyle lipgloss.Style
	if selected {
		titleStyle = d.styles.ListSelected.Width(width)
		descStyle = d.styles.ListSelected.Foreground(styles.Current.ForegroundDim).Width(width)
	} else {
		titleStyle = d.styles.ListItem.Width(width)
		descStyle = d.styles.ListItem.Foreground(styles.Current.ForegroundDim).Width(width)
	}

	members := fmt.Sprintf("%d members", len(p.project.AssignedUsers))
	if len(p.project.AssignedUsers) == 1 {
		members = "1 member"
	}
	desc := p.Description()
	if desc == "" {
		desc = members
	} else {
		desc = truncate(desc, width-len(members)-6) + " · " + members
	}

	fmt.Fprintf(w, "%s\n%s", titleStyle.Render(p.Title()), descStyle.Render(desc))
}

// ProjectListView lists the projects visible to the actor, one status at a time
type ProjectListView struct {
	deps     *Deps
	list     list.Model
	delegate *projectDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int

	status   models.ProjectStatus
	projects []models.Project
	users    []models.User
	seq      int
	loaded   bool

	// Create and edit form
	editing  bool
	editID   string
	newName  textinput.Model
	newDesc  textinput.Model
	focusIdx int // 0=name, 1=desc, 2=confirm

	// Member toggle panel
	staffing     bool
	staffID      string
	memberCursor int

	confirmingDelete bool
	deleteTarget     models.Project

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

type projectsLoadedMsg struct {
	seq      int
	projects []models.Project
}

type projectUsersMsg struct {
	users []models.User
}

// NewProjectListView creates the project list, opening on the last used status tab
func NewProjectListView(deps *Deps) *ProjectListView {
	s := styles.NewStyles()

	newName := textinput.New()
	newName.Placeholder = "Project name"
	newName.CharLimit = 255

	newDesc := textinput.New()
	newDesc.Placeholder = "Description (optional)"
	newDesc.CharLimit = 500

	delegate := &projectDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	v := &ProjectListView{
		deps:     deps,
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
		status:   models.ProjectActive,
		newName:  newName,
		newDesc:  newDesc,
	}
	if saved, err := deps.Settings.GetSetting(SettingProjectFilter); err == nil && slices.Contains(models.ProjectStatuses, models.ProjectStatus(saved)) {
		v.status = models.ProjectStatus(saved)
	}
	v.setTitle()
	return v
}

// Init loads the projects, and the users for admins
func (v *ProjectListView) Init() tea.Cmd {
	cmds := []tea.Cmd{v.load()}
	if policy.CanManageProjects(v.deps.actor()) {
		cmds = append(cmds, v.loadUsers)
	}
	return tea.Batch(cmds...)
}

// Status returns the status tab shown
func (v *ProjectListView) Status() models.ProjectStatus {
	return v.status
}

func (v *ProjectListView) load() tea.Cmd {
	v.seq++
	seq := v.seq
	ctx, status := v.deps.Ctx, v.status
	return func() tea.Msg {
		projects, err := v.deps.API.ProjectsByStatus(ctx, status)
		if err != nil {
			return Failed{Err: err}
		}
		return projectsLoadedMsg{seq: seq, projects: projects}
	}
}

func (v *ProjectListView) loadUsers() tea.Msg {
	users, err := v.deps.API.Users(v.deps.Ctx)
	if err != nil {
		return Failed{Err: err}
	}
	return projectUsersMsg{users: users}
}

func (v *ProjectListView) setTitle() {
	v.list.Title = fmt.Sprintf("Projects · %s", strings.ToLower(string(v.status)))
}

func (v *ProjectListView) selected() (models.Project, bool) {
	item, ok := v.list.SelectedItem().(projectItem)
	return item.project, ok
}

func (v *ProjectListView) findProject(id string) (models.Project, bool) {
	for _, p := range v.projects {
		if p.ID == id {
			return p, true
		}
	}
	return models.Project{}, false
}

// cycleFilter moves to the next status tab and remembers it
func (v *ProjectListView) cycleFilter() tea.Cmd {
	i := slices.Index(models.ProjectStatuses, v.status)
	v.status = models.ProjectStatuses[(i+1)%len(models.ProjectStatuses)]
	v.setTitle()
	if err := v.deps.Settings.SetSetting(SettingProjectFilter, string(v.status)); err != nil {
		v.deps.Log.Warn("saving project filter", "error", err)
	}
	v.loaded = false
	return v.load()
}

func (v *ProjectListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		// Use content width (capped at MaxWidth) for internal layout
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-6)
		return v, nil

	case projectsLoadedMsg:
		if msg.seq != v.seq {
			return v, nil
		}
		v.projects = policy.VisibleProjects(msg.projects, v.deps.actor())
		items := make([]list.Item, len(v.projects))
		for i, p := range v.projects {
			if err := p.Validate(); err != nil {
				v.deps.Log.Warn("project has duplicate members", "project", p.ID, "error", err)
			}
			items[i] = projectItem{project: p}
		}
		v.list.SetItems(items)
		v.loaded = true
		if _, ok := v.findProject(v.staffID); v.staffing && !ok {
			v.staffing = false
		}
		return v, nil

	case projectUsersMsg:
		v.users = msg.users
		return v, nil

	case actionDoneMsg:
		return v, tea.Batch(v.load(), Status(msg.text))

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}
		if v.editing {
			return v.updateEditing(msg)
		}
		if v.staffing {
			return v.updateStaffing(msg)
		}
		if v.list.FilterState() == list.Filtering {
			break
		}

		admin := policy.CanManageProjects(v.deps.actor())
		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Back):
			// Don't quit on escape in project list - only q quits
			if v.list.FilterState() == list.FilterApplied {
				break
			}
			return v, nil
		case key.Matches(msg, v.keys.Help):
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, v.keys.Tab):
			return v, v.cycleFilter()
		case key.Matches(msg, v.keys.Refresh):
			return v, v.load()
		case key.Matches(msg, v.keys.Logout):
			return v, emit(LogoutRequested{})
		case key.Matches(msg, v.keys.Users):
			if policy.CanManageUsers(v.deps.actor()) {
				return v, emit(ShowUsers{})
			}
			return v, nil
		case key.Matches(msg, v.keys.Enter):
			if p, ok := v.selected(); ok {
				return v, emit(SelectedProject{Project: p})
			}
			return v, nil
		case key.Matches(msg, v.keys.New):
			if !admin {
				return v, nil
			}
			return v, v.openForm(nil)
		case key.Matches(msg, v.keys.Edit):
			if p, ok := v.selected(); ok && admin {
				return v, v.openForm(&p)
			}
			return v, nil
		case key.Matches(msg, v.keys.Delete):
			if p, ok := v.selected(); ok && admin {
				v.confirmingDelete = true
				v.deleteTarget = p
			}
			return v, nil
		case key.Matches(msg, v.keys.Status):
			if p, ok := v.selected(); ok && admin {
				return v, v.advanceStatus(p)
			}
			return v, nil
		case key.Matches(msg, v.keys.Members):
			if p, ok := v.selected(); ok && admin {
				v.staffing = true
				v.staffID = p.ID
				v.memberCursor = 0
			}
			return v, nil
		}
	}

	var cmd tea.Cmd
	if v.editing {
		// Cursor blinks go to the focused input
		switch v.focusIdx {
		case 0:
			v.newName, cmd = v.newName.Update(msg)
		case 1:
			v.newDesc, cmd = v.newDesc.Update(msg)
		}
		return v, cmd
	}
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// advanceStatus moves p to the next status; the project leaves the current tab
func (v *ProjectListView) advanceStatus(p models.Project) tea.Cmd {
	i := slices.Index(models.ProjectStatuses, p.Status)
	next := models.ProjectStatuses[(i+1)%len(models.ProjectStatuses)]
	v.deps.Log.Info("project status", "project", p.ID, "from", p.Status, "to", next)
	return v.deps.write(fmt.Sprintf("%s is now %s", p.Name, strings.ToLower(string(next))), func(ctx context.Context) error {
		return v.deps.API.SetProjectStatus(ctx, p.ID, next)
	})
}

func (v *ProjectListView) openForm(existing *models.Project) tea.Cmd {
	v.editing = true
	v.editID = ""
	v.focusIdx = 0
	v.newName.Reset()
	v.newDesc.Reset()
	if existing != nil {
		v.editID = existing.ID
		v.newName.SetValue(existing.Name)
		v.newDesc.SetValue(existing.Description)
	}
	v.updateFocus()
	return textinput.Blink
}

func (v *ProjectListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		id := v.deleteTarget.ID
		v.deps.Log.Info("deleting project", "project", id)
		return v, v.deps.write("Project deleted", func(ctx context.Context) error {
			return v.deps.API.DeleteProject(ctx, id)
		})
	case "n", "N", "esc":
		v.confirmingDelete = false
		return v, nil
	}
	return v, nil
}

func (v *ProjectListView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.editing = false
		return v, nil

	case key.Matches(msg, v.keys.Submit):
		return v, v.save()

	case msg.String() == "shift+tab":
		v.focusIdx = (v.focusIdx + 2) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Tab):
		v.focusIdx = (v.focusIdx + 1) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.focusIdx == 0 || v.focusIdx == 1 {
			v.focusIdx++
			v.updateFocus()
			return v, nil
		}
		return v, v.save()
	}

	var cmd tea.Cmd
	switch v.focusIdx {
	case 0:
		v.newName, cmd = v.newName.Update(msg)
	case 1:
		v.newDesc, cmd = v.newDesc.Update(msg)
	}
	return v, cmd
}

// save validates the form and creates or updates the project
func (v *ProjectListView) save() tea.Cmd {
	req := api.ProjectRequest{
		Name:        strings.TrimSpace(v.newName.Value()),
		Description: strings.TrimSpace(v.newDesc.Value()),
	}
	if err := api.Validate(req); err != nil {
		return Fail(err)
	}
	v.editing = false

	id := v.editID
	if id == "" {
		req.Status = v.status
		return v.deps.write("Project created", func(ctx context.Context) error {
			_, err := v.deps.API.CreateProject(ctx, req)
			return err
		})
	}
	if p, ok := v.findProject(id); ok {
		req.Status = p.Status
	}
	return v.deps.write("Project updated", func(ctx context.Context) error {
		_, err := v.deps.API.UpdateProject(ctx, id, req)
		return err
	})
}

func (v *ProjectListView) updateFocus() {
	v.newName.Blur()
	v.newDesc.Blur()
	switch v.focusIdx {
	case 0:
		v.newName.Focus()
	case 1:
		v.newDesc.Focus()
	}
}

func (v *ProjectListView) updateStaffing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	candidates := policy.AssignableUsers(v.users)

	switch {
	case key.Matches(msg, v.keys.Back):
		v.staffing = false
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.memberCursor > 0 {
			v.memberCursor--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.memberCursor < len(candidates)-1 {
			v.memberCursor++
		}
		return v, nil

	case key.Matches(msg, v.keys.Toggle):
		p, ok := v.findProject(v.staffID)
		if !ok || v.memberCursor >= len(candidates) {
			return v, nil
		}
		return v, v.toggleMember(p, candidates[v.memberCursor])
	}
	return v, nil
}

// toggleMember adds user to p, or removes them if already a member
func (v *ProjectListView) toggleMember(p models.Project, user models.User) tea.Cmd {
	if p.HasMember(user.ID) {
		v.deps.Log.Info("removing member", "project", p.ID, "user", user.ID)
		return v.deps.write(fmt.Sprintf("Removed %s from %s", user.Name, p.Name), func(ctx context.Context) error {
			return v.deps.API.RemoveMember(ctx, p.ID, user.ID)
		})
	}
	v.deps.Log.Info("adding member", "project", p.ID, "user", user.ID)
	return v.deps.write(fmt.Sprintf("Added %s to %s", user.Name, p.Name), func(ctx context.Context) error {
		return v.deps.API.AssignMember(ctx, p.ID, user.ID)
	})
}

// View renders the view
func (v *ProjectListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.confirmingDelete {
		return renderConfirm(v.styles, v.width, v.height, "Delete Project?", v.deleteTarget.Name)
	}
	if v.editing {
		return v.renderForm()
	}
	if v.staffing {
		return v.renderMembers()
	}
	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}
	if len(v.list.Items()) == 0 {
		return v.renderEmpty()
	}

	content := v.list.View() + "\n" + v.renderHelp()
	return styles.CenterView(content, v.width, v.height)
}

func (v *ProjectListView) renderEmpty() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	lines := []string{
		s.Title.Render(fmt.Sprintf("No %s projects", strings.ToLower(string(v.status)))),
		"",
	}
	if policy.CanManageProjects(v.deps.actor()) {
		lines = append(lines,
			s.TitleMuted.Render("Press 'n' to create one, or tab for another status"),
			"",
			s.ButtonPrimary.Render(" New Project "),
		)
	} else {
		lines = append(lines, s.TitleMuted.Render("Press tab to see another status"))
	}

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, lines...),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	nameStyle := s.Input
	descStyle := s.Input
	btnStyle := s.Button

	switch v.focusIdx {
	case 0:
		nameStyle = s.InputFocused
	case 1:
		descStyle = s.InputFocused
	case 2:
		btnStyle = s.ButtonFocused
	}

	// Dynamic input width based on content width
	inputWidth := clamp(contentWidth-6, 20, 50)

	title, button := "New Project", " Create "
	if v.editID != "" {
		title, button = "Edit Project", " Save "
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(title),
		"",
		"Name:",
		nameStyle.Width(inputWidth).Render(v.newName.View()),
		"",
		"Description:",
		descStyle.Width(inputWidth).Render(v.newDesc.View()),
		"",
		btnStyle.Render(button),
		"",
		s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"),
	)

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderMembers() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	p, _ := v.findProject(v.staffID)

	var items []string
	for i, u := range policy.AssignableUsers(v.users) {
		itemStyle := s.ListItem
		if i == v.memberCursor {
			itemStyle = s.ListSelected
		}
		checkbox := "[ ]"
		if p.HasMember(u.ID) {
			checkbox = "[x]"
		}
		role := s.Badge.Foreground(styles.RoleColor(u.RoleName())).Render(u.Role.Name)
		items = append(items, itemStyle.Render(fmt.Sprintf("%s %s", checkbox, u.Name))+" "+role)
	}
	if len(items) == 0 {
		items = append(items, s.TitleMuted.Render("No developers or devops users available"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Members: "+p.Name),
		"",
		lipgloss.JoinVertical(lipgloss.Left, items...),
		"",
		s.TitleMuted.Render("Space/Enter: toggle • Esc: done"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ProjectListView) renderHelp() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 50 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}
	parts := []string{hk(s, "↵", "open"), hk(s, "tab", "status")}
	if policy.CanManageProjects(v.deps.actor()) {
		parts = append(parts, hk(s, "n", "new"), hk(s, "m", "members"))
	}
	parts = append(parts, hk(s, "?", "more"), hk(s, "q", "quit"))
	return helpLine(s, parts...)
}

func (v *ProjectListView) renderHelpPopup() string {
	s := v.styles
	items := []string{
		hk(s, "↵", "      open project"),
		hk(s, "tab", "    next status"),
		hk(s, "/", "      filter"),
		hk(s, "ctrl+r", " refresh"),
	}
	if policy.CanManageProjects(v.deps.actor()) {
		items = append(items,
			hk(s, "n", "      new project"),
			hk(s, "e", "      edit project"),
			hk(s, "d", "      delete project"),
			hk(s, "x", "      advance status"),
			hk(s, "m", "      members"),
			hk(s, "U", "      users"),
		)
	}
	items = append(items,
		hk(s, "L", "      log out"),
		hk(s, "q", "      quit"),
	)
	return renderHelpPopup(s, v.width, v.height, items)
}
