package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
	"github.com/tgienger/pmt/internal/timeline"
	"github.com/tgienger/pmt/internal/ui/keys"
	"github.com/tgienger/pmt/internal/ui/styles"
)

// TimelineView shows the tasks of one work week, a column per day
type TimelineView struct {
	deps      *Deps
	project   models.Project
	weekStart time.Time
	tasks     []models.Task
	week      timeline.Week
	users     []models.User
	styles    *styles.Styles
	keys      keys.KeyMap

	width  int
	height int

	day    int
	rows   [timeline.WorkDays]int
	seq    int
	loaded bool

	form *taskForm

	showHelpPopup bool
}

type weekLoadedMsg struct {
	seq   int
	tasks []models.Task
}

type weekUsersMsg struct {
	users []models.User
}

// NewTimelineView creates the week view for project, on the current week
func NewTimelineView(deps *Deps, project models.Project) *TimelineView {
	now := deps.now()
	day := timeline.DayIndex(now)
	if day >= timeline.WorkDays {
		day = 0
	}
	return &TimelineView{
		deps:      deps,
		project:   project,
		weekStart: timeline.WeekStart(now),
		day:       day,
		styles:    styles.NewStyles(),
		keys:      keys.DefaultKeyMap(),
	}
}

// Init loads the tasks
func (v *TimelineView) Init() tea.Cmd {
	cmds := []tea.Cmd{v.load()}
	if policy.CanCreateTasks(v.deps.actor()) {
		cmds = append(cmds, v.loadUsers)
	}
	return tea.Batch(cmds...)
}

// load fetches the tasks for the grid. Every week change re-fetches.
// Members only ever see their own tasks, so they fetch just those.
func (v *TimelineView) load() tea.Cmd {
	v.seq++
	seq := v.seq
	ctx, projectID := v.deps.Ctx, v.project.ID
	actor := v.deps.actor()
	return func() tea.Msg {
		if policy.IsMember(actor) {
			tasks, err := v.deps.API.AssignedTasks(ctx, actor.ID)
			if err != nil {
				return Failed{Err: err}
			}
			return weekLoadedMsg{seq: seq, tasks: inProject(tasks, projectID)}
		}
		tasks, err := v.deps.API.ProjectTasks(ctx, projectID)
		if err != nil {
			return Failed{Err: err}
		}
		return weekLoadedMsg{seq: seq, tasks: tasks}
	}
}

func inProject(tasks []models.Task, projectID string) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if t.Project.ID == projectID {
			out = append(out, t)
		}
	}
	return out
}

func (v *TimelineView) loadUsers() tea.Msg {
	users, err := v.deps.API.Users(v.deps.Ctx)
	if err != nil {
		return Failed{Err: err}
	}
	return weekUsersMsg{users: users}
}

// WeekStart returns the Monday currently shown
func (v *TimelineView) WeekStart() time.Time {
	return v.weekStart
}

func (v *TimelineView) rebucket() {
	v.week = timeline.Bucket(v.tasks, v.weekStart, v.deps.actor())
	for i := range v.rows {
		if v.rows[i] >= len(v.week.Days[i]) {
			v.rows[i] = max(0, len(v.week.Days[i])-1)
		}
	}
}

func (v *TimelineView) selected() (models.Task, bool) {
	cell := v.week.Days[v.day]
	row := v.rows[v.day]
	if row < 0 || row >= len(cell) {
		return models.Task{}, false
	}
	return cell[row].Task, true
}

func (v *TimelineView) goToWeek(start time.Time) tea.Cmd {
	v.weekStart = timeline.WeekStart(start)
	v.rows = [timeline.WorkDays]int{}
	v.rebucket()
	return v.load()
}

// Update handles messages
func (v *TimelineView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case weekLoadedMsg:
		if msg.seq != v.seq {
			return v, nil
		}
		v.tasks = msg.tasks
		v.loaded = true
		v.rebucket()
		return v, nil

	case weekUsersMsg:
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

func (v *TimelineView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
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

	case key.Matches(msg, v.keys.Board):
		return v, emit(ShowBoard{})

	case key.Matches(msg, v.keys.PrevWeek):
		return v, v.goToWeek(timeline.Prev(v.weekStart))

	case key.Matches(msg, v.keys.NextWeek):
		return v, v.goToWeek(timeline.Next(v.weekStart))

	case key.Matches(msg, v.keys.Today):
		return v, v.goToWeek(v.deps.now())

	case key.Matches(msg, v.keys.Left):
		v.day = (v.day + timeline.WorkDays - 1) % timeline.WorkDays
		return v, nil

	case key.Matches(msg, v.keys.Right), key.Matches(msg, v.keys.Tab):
		v.day = (v.day + 1) % timeline.WorkDays
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.rows[v.day] > 0 {
			v.rows[v.day]--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.rows[v.day] < len(v.week.Days[v.day])-1 {
			v.rows[v.day]++
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if task, ok := v.selected(); ok {
			return v, emit(OpenTask{TaskID: task.ID})
		}
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.load()

	case key.Matches(msg, v.keys.New):
		if !policy.CanCreateTasks(v.deps.actor()) {
			return v, nil
		}
		at := timeline.DayDate(v.weekStart, v.day)
		v.form = newTaskForm(v.project.ID, nil, &at, v.users, styles.ContentWidth(v.width))
		return v, v.form.form.Init()

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}
	return v, nil
}

// View renders the view
func (v *TimelineView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.form != nil {
		contentWidth := styles.ContentWidth(v.width)
		centered := lipgloss.Place(contentWidth, v.height,
			lipgloss.Center, lipgloss.Center,
			v.form.view(),
		)
		return styles.CenterView(centered, v.width, v.height)
	}
	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(v.renderGrid())
	b.WriteString("\n")
	b.WriteString(v.renderHelp())
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TimelineView) renderHeader() string {
	s := v.styles
	friday := v.weekStart.AddDate(0, 0, timeline.WorkDays-1)
	title := s.Title.Render(v.project.Name)
	count := fmt.Sprintf("%d tasks", v.week.Len())
	if v.week.Len() == 1 {
		count = "1 task"
	}
	span := s.TitleMuted.Render(fmt.Sprintf("Week of %s – %s · %s", v.weekStart.Format("Jan 2"), friday.Format("Jan 2, 2006"), count))

	extra := ""
	if n := len(v.week.Weekend); n > 0 {
		extra = "  " + s.TitleMuted.Render(fmt.Sprintf("(+%d on the weekend, through %s)", n, v.week.End().Format("Mon Jan 2")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", span, extra)
}

func (v *TimelineView) renderGrid() string {
	s := v.styles
	total := styles.WideWidth(v.width)
	colWidth := max((total-2)/timeline.WorkDays-4, 12)
	maxCards := max((v.height-10)/3, 1)
	today := v.deps.now().Format(timeline.DateLayout)

	dates := v.week.Dates()
	if v.week.Start.IsZero() {
		for i := range dates {
			dates[i] = v.weekStart.AddDate(0, 0, i)
		}
	}

	cols := make([]string, 0, timeline.WorkDays)
	for i := 0; i < timeline.WorkDays; i++ {
		label := fmt.Sprintf("%s %s", timeline.DayNames[i][:3], dates[i].Format("Jan 2"))
		headerStyle := s.ColumnHeader
		if dates[i].Format(timeline.DateLayout) == today {
			headerStyle = headerStyle.Foreground(styles.Current.Accent)
		}

		cell := v.week.Days[i]
		var cards []string
		start := max(0, v.rows[i]-maxCards+1)
		end := min(len(cell), start+maxCards)
		for j := start; j < end; j++ {
			cards = append(cards, renderTaskCard(s, cell[j].Task, colWidth, i == v.day && j == v.rows[i]))
		}
		if len(cell) == 0 {
			cards = append(cards, s.TitleMuted.Render("—"))
		}

		style := s.Column
		if i == v.day {
			style = s.ColumnFocus
		}
		body := lipgloss.JoinVertical(lipgloss.Left, append([]string{headerStyle.Render(label)}, cards...)...)
		cols = append(cols, style.Width(colWidth).Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (v *TimelineView) renderHelp() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 50 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}

	parts := []string{hk(s, "[ ]", "week"), hk(s, "↵", "open")}
	if task, ok := v.selected(); ok {
		parts = append(parts, actionHelp(s, v.deps.Policy.PermittedActions(task, v.deps.actor()))...)
	}
	if policy.CanCreateTasks(v.deps.actor()) {
		parts = append(parts, hk(s, "n", "new on day"))
	}
	parts = append(parts, hk(s, "b", "board"), hk(s, "esc", "projects"))
	return helpLine(s, parts...)
}

func (v *TimelineView) renderHelpPopup() string {
	s := v.styles
	items := []string{
		hk(s, "[ ]", "   previous / next week"),
		hk(s, "t", "     this week"),
		hk(s, "←/→", "   day"),
		hk(s, "↑/↓", "   task"),
		hk(s, "↵", "     open task"),
		hk(s, "s f a r", "start / finish / approve / reject"),
		hk(s, "b", "     board"),
	}
	if policy.CanCreateTasks(v.deps.actor()) {
		items = append(items, hk(s, "n", "     new task on the selected day"))
	}
	return renderHelpPopup(s, v.width, v.height, items)
}
