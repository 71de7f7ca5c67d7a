package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tgienger/pmt/internal/api"
	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
	"github.com/tgienger/pmt/internal/ui/keys"
	"github.com/tgienger/pmt/internal/ui/styles"
)

// TaskView shows one task with its notes
type TaskView struct {
	deps   *Deps
	taskID string
	task   *models.Task
	notes  []models.TaskNote
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	seq    int
	loaded bool
	scroll int

	// Note input
	writing   bool
	noteInput textarea.Model

	confirmingDelete bool
	showHelpPopup    bool
}

type taskDeletedMsg struct{}

type taskLoadedMsg struct {
	seq   int
	task  *models.Task
	notes []models.TaskNote
}

// NewTaskView creates the detail view for taskID
func NewTaskView(deps *Deps, taskID string) *TaskView {
	ta := textarea.New()
	ta.Placeholder = "Write a note..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(4)

	return &TaskView{
		deps:      deps,
		taskID:    taskID,
		styles:    styles.NewStyles(),
		keys:      keys.DefaultKeyMap(),
		noteInput: ta,
	}
}

// Init loads the task and its notes
func (v *TaskView) Init() tea.Cmd {
	return v.load()
}

// TaskID returns the id of the task shown
func (v *TaskView) TaskID() string {
	return v.taskID
}

func (v *TaskView) load() tea.Cmd {
	v.seq++
	seq := v.seq
	ctx, id := v.deps.Ctx, v.taskID
	return func() tea.Msg {
		task, err := v.deps.API.Task(ctx, id)
		if err != nil {
			return Failed{Err: err}
		}
		notes, err := v.deps.API.Notes(ctx, id)
		if err != nil {
			return Failed{Err: err}
		}
		return taskLoadedMsg{seq: seq, task: task, notes: notes}
	}
}

// markRead clears the unread marker once the notes have been shown
func (v *TaskView) markRead() tea.Cmd {
	ctx, id := v.deps.Ctx, v.taskID
	log := v.deps.Log
	return func() tea.Msg {
		if _, err := v.deps.API.MarkNotesRead(ctx, id); err != nil {
			log.Warn("mark notes read failed", "task", id, "error", err)
		}
		return nil
	}
}

func (v *TaskView) permitted() policy.ActionSet {
	if v.task == nil {
		return policy.ActionSet{}
	}
	return v.deps.Policy.PermittedActions(*v.task, v.deps.actor())
}

// Update handles messages
func (v *TaskView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.noteInput.SetWidth(clamp(styles.ContentWidth(v.width)-8, 20, 72))
		return v, nil

	case taskLoadedMsg:
		if msg.seq != v.seq {
			return v, nil
		}
		v.task = msg.task
		v.notes = msg.notes
		v.loaded = true
		if v.task != nil && v.task.HasUnreadNotes {
			return v, v.markRead()
		}
		return v, nil

	case actionDoneMsg:
		return v, tea.Batch(v.load(), Status(msg.text))

	case taskDeletedMsg:
		return v, tea.Batch(emit(CloseTask{}), Status("Task deleted"))

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.writing {
			return v.updateWriting(msg)
		}
		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}
		return v.updateNormal(msg)
	}

	if v.writing {
		var cmd tea.Cmd
		v.noteInput, cmd = v.noteInput.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *TaskView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if action, ok := lifecycleKey(msg); ok {
		if v.task == nil {
			return v, nil
		}
		return v, v.deps.perform(*v.task, action)
	}

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		return v, emit(CloseTask{})

	case key.Matches(msg, v.keys.Up):
		if v.scroll > 0 {
			v.scroll--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.scroll < len(v.notes)-1 {
			v.scroll++
		}
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.load()

	case key.Matches(msg, v.keys.Note):
		if !v.permitted().Has(policy.AddNote) {
			return v, nil
		}
		v.writing = true
		v.noteInput.Reset()
		return v, v.noteInput.Focus()

	case key.Matches(msg, v.keys.Delete):
		if !v.permitted().Has(policy.Delete) {
			return v, nil
		}
		v.confirmingDelete = true
		return v, nil

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}
	return v, nil
}

func (v *TaskView) updateWriting(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.writing = false
		v.noteInput.Blur()
		return v, nil

	case key.Matches(msg, v.keys.Submit):
		text := strings.TrimSpace(v.noteInput.Value())
		if text == "" {
			return v, nil
		}
		v.writing = false
		v.noteInput.Blur()
		return v, v.postNote(text)
	}

	var cmd tea.Cmd
	v.noteInput, cmd = v.noteInput.Update(msg)
	return v, cmd
}

func (v *TaskView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		if v.task == nil {
			return v, nil
		}
		return v, v.delete(*v.task)
	case "n", "N", "esc":
		v.confirmingDelete = false
	}
	return v, nil
}

// delete removes the task and leaves the view instead of re-fetching it
func (v *TaskView) delete(task models.Task) tea.Cmd {
	if err := v.deps.Policy.Authorize(task, v.deps.actor(), policy.Delete); err != nil {
		return Fail(err)
	}
	ctx := v.deps.Ctx
	return func() tea.Msg {
		if err := v.deps.API.DeleteTask(ctx, task.ID); err != nil {
			return Failed{Err: err}
		}
		return taskDeletedMsg{}
	}
}

// postNote re-checks the permission and sends the note
func (v *TaskView) postNote(text string) tea.Cmd {
	if v.task == nil {
		return nil
	}
	actor := v.deps.actor()
	if err := v.deps.Policy.Authorize(*v.task, actor, policy.AddNote); err != nil {
		return Fail(err)
	}
	req := api.NoteRequest{
		NoteText:    text,
		IsAdminNote: actor.Role == models.RoleAdmin,
	}
	if err := api.Validate(req); err != nil {
		return Fail(err)
	}
	id := v.task.ID
	return v.deps.write("Note added", func(ctx context.Context) error {
		_, err := v.deps.API.AddNote(ctx, id, req)
		return err
	})
}

// View renders the view
func (v *TaskView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if !v.loaded || v.task == nil {
		return v.styles.TitleMuted.Render("Loading...")
	}
	if v.confirmingDelete {
		return renderConfirm(v.styles, v.width, v.height, "Delete Task?", v.task.Name)
	}

	contentWidth := styles.ContentWidth(v.width)

	var b strings.Builder
	b.WriteString(v.renderDetails(contentWidth))
	b.WriteString("\n")
	b.WriteString(v.renderNotes(contentWidth))
	if v.writing {
		b.WriteString("\n")
		b.WriteString(v.styles.InputFocused.Render(v.noteInput.View()))
		b.WriteString("\n")
		b.WriteString(v.styles.TitleMuted.Render("ctrl+s: post • esc: cancel"))
	}
	b.WriteString("\n")
	b.WriteString(v.renderHelp())
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TaskView) renderDetails(width int) string {
	s := v.styles
	t := v.task

	priority := s.Badge.Foreground(styles.PriorityColor(t.Priority)).Render(string(t.Priority))
	header := lipgloss.JoinHorizontal(lipgloss.Center, s.Title.Render(truncate(t.Name, width-30)), "  ", stateBadge(s, t.State), priority)

	row := func(label, value string) string {
		return s.TitleMuted.Width(12).Render(label) + value
	}

	lines := []string{header, ""}
	if t.Project.Name != "" {
		lines = append(lines, row("Project", t.Project.Name))
	}
	lines = append(lines, row("Assignee", assigneeName(*t)))
	if t.EstimatedTime != nil {
		lines = append(lines, row("Estimate", fmt.Sprintf("%dh", *t.EstimatedTime)))
	}
	lines = append(lines, row("Created", humanize.Time(t.CreationTimestamp.Time)))
	if t.AssignmentTimestamp != nil && !t.AssignmentTimestamp.IsZero() {
		lines = append(lines, row("Scheduled", t.AssignmentTimestamp.Format("Mon Jan 2, 2006")))
	}
	if t.StartTimestamp != nil && !t.StartTimestamp.IsZero() {
		lines = append(lines, row("Started", humanize.Time(t.StartTimestamp.Time)))
	}
	if t.CompletionTimestamp != nil && !t.CompletionTimestamp.IsZero() {
		lines = append(lines, row("Finished", humanize.Time(t.CompletionTimestamp.Time)))
	}
	if desc := strings.TrimSpace(t.Description); desc != "" {
		lines = append(lines, "", lipgloss.NewStyle().Width(width-4).Render(desc))
	}
	return s.List.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (v *TaskView) renderNotes(width int) string {
	s := v.styles
	title := s.ColumnHeader.Render(fmt.Sprintf("Notes (%d)", len(v.notes)))
	if len(v.notes) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, s.TitleMuted.Render("No notes yet"))
	}

	visible := max((v.height-22)/3, 2)
	start := clamp(v.scroll, 0, max(0, len(v.notes)-1))
	end := min(len(v.notes), start+visible)

	items := []string{title}
	for _, n := range v.notes[start:end] {
		author := s.TaskTitle.Bold(true).Render(n.UserName)
		if n.IsAdminNote {
			author += " " + s.Badge.Foreground(styles.RoleColor(models.RoleAdmin)).Render("admin")
		}
		when := s.TitleMuted.Render(humanize.Time(n.CreationTimestamp.Time))
		body := lipgloss.NewStyle().Width(width - 6).Render(n.NoteText)
		items = append(items, author+" "+when, body, "")
	}
	if end < len(v.notes) {
		items = append(items, s.TitleMuted.Render(fmt.Sprintf("%s more", humanize.Comma(int64(len(v.notes)-end)))))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TaskView) renderHelp() string {
	s := v.styles
	allowed := v.permitted()
	parts := actionHelp(s, allowed)
	if allowed.Has(policy.AddNote) {
		parts = append(parts, hk(s, "c", "note"))
	}
	parts = append(parts, hk(s, "esc", "back"), hk(s, "?", "more"))
	return helpLine(s, parts...)
}

func (v *TaskView) renderHelpPopup() string {
	s := v.styles
	items := []string{
		hk(s, "s f", "   start / finish"),
		hk(s, "a r", "   approve / reject"),
		hk(s, "c", "     add a note"),
		hk(s, "↑/↓", "   scroll notes"),
		hk(s, "ctrl+r", "refresh"),
		hk(s, "esc", "   back"),
	}
	if v.permitted().Has(policy.Delete) {
		items = append(items, hk(s, "d", "     delete task"))
	}
	return renderHelpPopup(s, v.width, v.height, items)
}
