package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
	"github.com/tgienger/pmt/internal/ui/keys"
	"github.com/tgienger/pmt/internal/ui/styles"
)

// userFilters are the role tabs of the users view; "" shows everyone
var userFilters = []models.Role{"", models.RoleAdmin, models.RoleDeveloper, models.RoleDevOps}

// UsersView is user administration: list the team and deactivate accounts
type UsersView struct {
	deps   *Deps
	users  []models.User
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	filter int
	cursor int
	seq    int
	loaded bool

	confirmingDelete bool
	deleteTarget     models.User

	showHelpPopup bool
}

type usersLoadedMsg struct {
	seq   int
	users []models.User
}

// NewUsersView creates the users view
func NewUsersView(deps *Deps) *UsersView {
	return &UsersView{
		deps:   deps,
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
	}
}

// Init loads the users
func (v *UsersView) Init() tea.Cmd {
	return v.load()
}

func (v *UsersView) load() tea.Cmd {
	v.seq++
	seq := v.seq
	ctx := v.deps.Ctx
	return func() tea.Msg {
		users, err := v.deps.API.Users(ctx)
		if err != nil {
			return Failed{Err: err}
		}
		return usersLoadedMsg{seq: seq, users: users}
	}
}

// visible returns the active users matching the role tab
func (v *UsersView) visible() []models.User {
	role := userFilters[v.filter]
	var out []models.User
	for _, u := range models.ActiveUsers(v.users) {
		if role == "" || u.RoleName() == role {
			out = append(out, u)
		}
	}
	return out
}

func (v *UsersView) selected() (models.User, bool) {
	users := v.visible()
	if v.cursor < 0 || v.cursor >= len(users) {
		return models.User{}, false
	}
	return users[v.cursor], true
}

// Update handles messages
func (v *UsersView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case usersLoadedMsg:
		if msg.seq != v.seq {
			return v, nil
		}
		v.users = msg.users
		v.loaded = true
		v.cursor = clamp(v.cursor, 0, max(0, len(v.visible())-1))
		return v, nil

	case actionDoneMsg:
		return v, tea.Batch(v.load(), Status(msg.text))

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}
		return v.updateNormal(msg)
	}
	return v, nil
}

func (v *UsersView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		return v, emit(BackToProjects{})

	case key.Matches(msg, v.keys.Tab):
		v.filter = (v.filter + 1) % len(userFilters)
		v.cursor = 0
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.visible())-1 {
			v.cursor++
		}
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.load()

	case key.Matches(msg, v.keys.Delete):
		u, ok := v.selected()
		if !ok || !policy.CanSoftDelete(v.deps.actor(), u) {
			return v, nil
		}
		v.confirmingDelete = true
		v.deleteTarget = u
		return v, nil

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}
	return v, nil
}

func (v *UsersView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		u := v.deleteTarget
		if !policy.CanSoftDelete(v.deps.actor(), u) {
			return v, Fail(fmt.Errorf("%w: %s can not be deactivated", policy.ErrUnauthorized, u.Name))
		}
		v.deps.Log.Info("deactivating user", "user", u.ID)
		return v, v.deps.write(fmt.Sprintf("%s deactivated", u.Name), func(ctx context.Context) error {
			return v.deps.API.SoftDeleteUser(ctx, u.ID)
		})
	case "n", "N", "esc":
		v.confirmingDelete = false
	}
	return v, nil
}

// View renders the view
func (v *UsersView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.confirmingDelete {
		return renderConfirm(v.styles, v.width, v.height, "Deactivate User?", v.deleteTarget.Name)
	}
	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}

	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	users := v.visible()

	var b strings.Builder
	b.WriteString(s.Title.Render("Users"))
	b.WriteString("  ")
	b.WriteString(v.renderTabs())
	b.WriteString("\n\n")

	if len(users) == 0 {
		b.WriteString(s.TitleMuted.Render("No users"))
	}
	rows := max(v.height-8, 1)
	start := max(0, v.cursor-rows+1)
	end := min(len(users), start+rows)
	for i := start; i < end; i++ {
		b.WriteString(v.renderRow(users[i], contentWidth, i == v.cursor))
		b.WriteString("\n")
	}
	b.WriteString(v.renderHelp())
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *UsersView) renderTabs() string {
	s := v.styles
	var tabs []string
	for i, r := range userFilters {
		label := "All"
		if r != "" {
			label = string(r)
		}
		style := s.FilterButton
		if i == v.filter {
			style = style.Foreground(styles.Current.Primary).Bold(true)
		}
		tabs = append(tabs, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, tabs...)
}

func (v *UsersView) renderRow(u models.User, width int, selected bool) string {
	s := v.styles
	itemStyle := s.ListItem
	if selected {
		itemStyle = s.ListSelected
	}
	role := s.Badge.Foreground(styles.RoleColor(u.RoleName())).Render(u.Role.Name)
	since := s.TitleMuted.Render("joined " + humanize.Time(u.CreationTimestamp.Time))
	line := itemStyle.Width(max(width/2, 20)).Render(truncate(u.Name+" <"+u.Email+">", width/2-4))
	return lipgloss.JoinHorizontal(lipgloss.Center, line, role, since)
}

func (v *UsersView) renderHelp() string {
	s := v.styles
	parts := []string{hk(s, "tab", "role")}
	if u, ok := v.selected(); ok && policy.CanSoftDelete(v.deps.actor(), u) {
		parts = append(parts, hk(s, "d", "deactivate"))
	}
	parts = append(parts, hk(s, "esc", "projects"))
	return helpLine(s, parts...)
}

func (v *UsersView) renderHelpPopup() string {
	s := v.styles
	items := []string{
		hk(s, "tab", "   next role"),
		hk(s, "↑/↓", "   select"),
		hk(s, "d", "     deactivate user"),
		hk(s, "esc", "   back to projects"),
	}
	return renderHelpPopup(s, v.width, v.height, items)
}
