package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/pmt/internal/lifecycle"
	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
	"github.com/tgienger/pmt/internal/ui/keys"
	"github.com/tgienger/pmt/internal/ui/styles"
)

// BoardView shows a project's tasks in To Do / In Progress / Completed columns
type BoardView struct {
	deps    *Deps
	project models.Project
	tasks   []models.Task
	board   lifecycle.Board
	users   []models.User
	styles  *styles.Styles
	keys    keys.KeyMap

	width  int
	height int

	col    int
	rows   [lifecycle.NumColumns]int
	seq    int
	loaded bool

	form *taskForm

	// Assign picker
	assigning    bool
	assignCursor int

	// Delete confirmation
	confirmingDelete bool
	deleteTarget     models.Task

	showHelpPopup bool
}

type boardLoadedMsg struct {
	seq   int
	tasks []models.Task
}

type boardUsersMsg struct {
	users []models.User
}

// NewBoardView creates a board for project
func NewBoardView(deps *Deps, project models.Project) *BoardView {
	return &BoardView{
		deps:    deps,
		project: project,
		styles:  styles.NewStyles(),
		keys:    keys.DefaultKeyMap(),
	}
}

// Init loads the tasks, and the user list for admins
func (v *BoardView) Init() tea.Cmd {
	cmds := []tea.Cmd{v.load()}
	if policy.CanCreateTasks(v.deps.actor()) {
		cmds = append(cmds, v.loadUsers)
	}
	return tea.Batch(cmds...)
}

func (v *BoardView) load() tea.Cmd {
	v.seq++
	seq := v.seq
	ctx, projectID := v.deps.Ctx, v.project.ID
	return func() tea.Msg {
		tasks, err := v.deps.API.ProjectTasks(ctx, projectID)
		if err != nil {
			return Failed{Err: err}
		}
		return boardLoadedMsg{seq: seq, tasks: tasks}
	}
}

func (v *BoardView) loadUsers() tea.Msg {
	users, err := v.deps.API.Users(v.deps.Ctx)
	if err != nil {
		return Failed{Err: err}
	}
	return boardUsersMsg{users: users}
}

// Project returns the project on the board
func (v *BoardView) Project() models.Project {
	return v.project
}

// selected returns the task under the cursor
func (v *BoardView) selected() (models.Task, bool) {
	col := v.board[v.col]
	row := v.rows[v.col]
	if row < 0 || row >= len(col) {
		return models.Task{}, false
	}
	return col[row], true
}

func (v *BoardView) setTasks(tasks []models.Task) {
	v.tasks = tasks
	v.board = lifecycle.GroupByColumn(v.tasks)
	for i := range v.rows {
		if v.rows[i] >= len(v.board[i]) {
			v.rows[i] = max(0, len(v.board[i])-1)
		}
	}
	v.loaded = true
}

// Update handles messages
func (v *BoardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case boardLoadedMsg:
		if msg.seq != v.seq {
			return v, nil
		}
		v.setTasks(msg.tasks)
		return v, nil

	case boardUsersMsg:
		v.users = msg.users
		return v, nil

	case actionDoneMsg:
		return v, tea.Batch(v.load(), Status(msg.text))

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.form != nil {
			return v.updateForm(msg)
		}
		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}
		if v.assigning {
			return v.updateAssigning(msg)
		}
		return v.updateNormal(msg)
	}

	if v.form != nil {
		done, cmd := v.form.update(v.deps, msg)
		if done {
			v.form = nil
		}
		return v, cmd
	}
	return v, nil
}

func (v *BoardView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	actor := v.deps.actor()

	if action, ok := lifecycleKey(msg); ok {
		task, found := v.selected()
		if !found {
			return v, nil
		}
		return v, v.deps.perform(task, action)
	}

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		return v, emit(BackToProjects{})

	case key.Matches(msg, v.keys.Left):
		v.col = (v.col + len(lifecycle.Columns) - 1) % len(lifecycle.Columns)
		return v, nil

	case key.Matches(msg, v.keys.Right), key.Matches(msg, v.keys.Tab):
		v.col = (v.col + 1) % len(lifecycle.Columns)
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.rows[v.col] > 0 {
			v.rows[v.col]--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.rows[v.col] < len(v.board[v.col])-1 {
			v.rows[v.col]++
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if task, ok := v.selected(); ok {
			return v, emit(OpenTask{TaskID: task.ID})
		}
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.load()

	case key.Matches(msg, v.keys.Timeline):
		return v, emit(ShowTimeline{})

	case key.Matches(msg, v.keys.New):
		if !policy.CanCreateTasks(actor) {
			return v, nil
		}
		v.form = newTaskForm(v.project.ID, nil, nil, v.users, styles.ContentWidth(v.width))
		return v, v.form.form.Init()

	case key.Matches(msg, v.keys.Edit):
		task, ok := v.selected()
		if !ok || !v.deps.Policy.PermittedActions(task, actor).Has(policy.Edit) {
			return v, nil
		}
		v.form = newTaskForm(v.project.ID, &task, nil, v.users, styles.ContentWidth(v.width))
		return v, v.form.form.Init()

	case key.Matches(msg, v.keys.Delete):
		task, ok := v.selected()
		if !ok || !v.deps.Policy.PermittedActions(task, actor).Has(policy.Delete) {
			return v, nil
		}
		v.confirmingDelete = true
		v.deleteTarget = task
		return v, nil

	case key.Matches(msg, v.keys.Assign):
		if _, ok := v.selected(); !ok || !policy.CanCreateTasks(actor) {
			return v, nil
		}
		v.assigning = true
		v.assignCursor = 0
		return v, nil

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}

	return v, nil
}

func (v *BoardView) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, v.keys.Back) {
		v.form = nil
		return v, nil
	}
	done, cmd := v.form.update(v.deps, msg)
	if done {
		v.form = nil
	}
	return v, cmd
}

func (v *BoardView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		task := v.deleteTarget
		if fresh, ok := findTask(v.tasks, task.ID); ok {
			task = fresh
		}
		return v, v.deps.perform(task, policy.Delete)
	case "n", "N", "esc":
		v.confirmingDelete = false
		return v, nil
	}
	return v, nil
}

func (v *BoardView) updateAssigning(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	candidates := policy.AssignableUsers(v.users)

	switch {
	case key.Matches(msg, v.keys.Back):
		v.assigning = false
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.assignCursor > 0 {
			v.assignCursor--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.assignCursor < len(candidates)-1 {
			v.assignCursor++
		}
		return v, nil

	case key.Matches(msg, v.keys.Toggle):
		task, ok := v.selected()
		v.assigning = false
		if !ok || v.assignCursor >= len(candidates) {
			return v, nil
		}
		user := candidates[v.assignCursor]
		v.deps.Log.Info("assigning task", "task", task.ID, "assignee", user.ID)
		return v, v.deps.write(fmt.Sprintf("Assigned to %s", user.Name), func(ctx context.Context) error {
			_, err := v.deps.API.AssignTask(ctx, task.ID, user.ID)
			return err
		})
	}
	return v, nil
}

// View renders the view
func (v *BoardView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.form != nil {
		return v.renderForm()
	}
	if v.confirmingDelete {
		return renderConfirm(v.styles, v.width, v.height, "Delete Task?", v.deleteTarget.Name)
	}
	if v.assigning {
		return v.renderAssign()
	}
	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(v.renderColumns())
	b.WriteString("\n")
	b.WriteString(v.renderHelp())

	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *BoardView) renderHeader() string {
	s := v.styles
	actor := v.deps.actor()
	title := s.Title.Render(v.project.Name)
	who := s.TitleMuted.Render(fmt.Sprintf("%s · %d tasks", actor.Name, len(v.tasks)))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", who)
}

func (v *BoardView) renderColumns() string {
	s := v.styles
	total := styles.WideWidth(v.width)
	colWidth := max((total-2)/len(lifecycle.Columns)-4, 16)
	maxCards := max((v.height-10)/3, 1)

	cols := make([]string, 0, len(lifecycle.Columns))
	for i, c := range lifecycle.Columns {
		tasks := v.board[c]
		header := s.ColumnHeader.Render(fmt.Sprintf("%s (%d)", c.Title(), len(tasks)))

		var cards []string
		start := max(0, v.rows[i]-maxCards+1)
		end := min(len(tasks), start+maxCards)
		for j := start; j < end; j++ {
			cards = append(cards, v.renderCard(tasks[j], colWidth, i == v.col && j == v.rows[i]))
		}
		if len(tasks) == 0 {
			cards = append(cards, s.TitleMuted.Render("empty"))
		}

		style := s.Column
		if i == v.col {
			style = s.ColumnFocus
		}
		body := lipgloss.JoinVertical(lipgloss.Left, append([]string{header}, cards...)...)
		cols = append(cols, style.Width(colWidth).Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (v *BoardView) renderCard(t models.Task, width int, selected bool) string {
	return renderTaskCard(v.styles, t, width, selected)
}

func (v *BoardView) renderForm() string {
	contentWidth := styles.ContentWidth(v.width)
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		v.form.view(),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *BoardView) renderAssign() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	task, _ := v.selected()

	var items []string
	for i, u := range policy.AssignableUsers(v.users) {
		itemStyle := s.ListItem
		if i == v.assignCursor {
			itemStyle = s.ListSelected
		}
		mark := "( )"
		if task.AssignedTo(u.ID) {
			mark = "(•)"
		}
		items = append(items, itemStyle.Render(fmt.Sprintf("%s %s  %s", mark, u.Name, s.TitleMuted.Render(u.Role.Name))))
	}
	if len(items) == 0 {
		items = append(items, s.TitleMuted.Render("No developers or devops users available"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Assign: "+task.Name),
		"",
		lipgloss.JoinVertical(lipgloss.Left, items...),
		"",
		s.TitleMuted.Render("Enter/Space: assign • Esc: cancel"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *BoardView) renderHelp() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 50 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}

	parts := []string{hk(s, "↵", "open")}
	if task, ok := v.selected(); ok {
		parts = append(parts, actionHelp(s, v.deps.Policy.PermittedActions(task, v.deps.actor()))...)
	}
	parts = append(parts, hk(s, "w", "week"), hk(s, "esc", "projects"), hk(s, "?", "more"))
	return helpLine(s, parts...)
}

func (v *BoardView) renderHelpPopup() string {
	s := v.styles
	items := []string{
		hk(s, "←/→", "   column"),
		hk(s, "↑/↓", "   task"),
		hk(s, "↵", "     open task"),
		hk(s, "s f", "   start / finish"),
		hk(s, "a r", "   approve / reject"),
		hk(s, "e", "     edit task"),
		hk(s, "w", "     week view"),
		hk(s, "ctrl+r", "refresh"),
	}
	if policy.CanCreateTasks(v.deps.actor()) {
		items = append(items,
			hk(s, "n", "     new task"),
			hk(s, "u", "     assign"),
			hk(s, "d", "     delete"),
		)
	}
	return renderHelpPopup(s, v.width, v.height, items)
}

// renderTaskCard is the two-line task summary shared by the board and the week grid
func renderTaskCard(s *styles.Styles, t models.Task, width int, selected bool) string {
	name := truncate(t.Name, width-2)
	if t.HasUnreadNotes {
		name = truncate(t.Name, width-4) + " " + s.Unread.Render("●")
	}
	meta := fmt.Sprintf("%s · %s", truncate(assigneeName(t), width/2), t.State.Label())

	titleStyle := s.TaskTitle.Width(width)
	metaStyle := s.TitleMuted.Width(width)
	if selected {
		titleStyle = s.ListSelected.Padding(0).Width(width)
		metaStyle = s.ListSelected.Padding(0).Foreground(styles.StateColor(t.State)).Width(width)
	} else {
		metaStyle = metaStyle.Foreground(styles.StateColor(t.State))
	}

	priority := lipgloss.NewStyle().Foreground(styles.PriorityColor(t.Priority)).Render("▌")
	return lipgloss.JoinHorizontal(lipgloss.Top,
		priority,
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(name), metaStyle.Render(meta)),
	) + "\n"
}

func renderHelpPopup(s *styles.Styles, width, height int, items []string) string {
	contentWidth := styles.ContentWidth(width)
	items = append(items, "", s.TitleMuted.Render("Press any key to close"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, items...)...,
	)
	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, width, height)
}

func renderConfirm(s *styles.Styles, width, height int, title, name string) string {
	contentWidth := styles.ContentWidth(width)
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render(title),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q will be removed.", name)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)
	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, width, height)
}
