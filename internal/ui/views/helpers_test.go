package views

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/pmt/internal/api/apitest"
	"github.com/tgienger/pmt/internal/db"
	"github.com/tgienger/pmt/internal/logging"
	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
	"github.com/tgienger/pmt/internal/session"
)

var (
	admin = models.Identity{ID: "admin-1", Name: "Ada", Email: "ada@example.com", Role: models.RoleAdmin}
	dev   = models.Identity{ID: "dev-1", Name: "Dan", Email: "dan@example.com", Role: models.RoleDeveloper}
	dev2  = models.Identity{ID: "dev-2", Name: "Deb", Email: "deb@example.com", Role: models.RoleDeveloper}
	ops   = models.Identity{ID: "ops-1", Name: "Oz", Email: "oz@example.com", Role: models.RoleDevOps}

	project = models.Project{ID: "p1", Name: "Apollo", Status: models.ProjectActive}

	// Wednesday
	fixedNow = time.Date(2024, time.March, 13, 10, 0, 0, 0, time.Local)
)

type harness struct {
	deps    *Deps
	backend *apitest.Fake
	store   *db.DB
}

func newHarness(t *testing.T, actor models.Identity) *harness {
	t.Helper()
	store, err := db.New(db.DriverPureGo, filepath.Join(t.TempDir(), "pmt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sess := session.New(store, nil)
	require.NoError(t, sess.Login(actor, "token"))

	backend := apitest.New()
	backend.Now = func() time.Time { return fixedNow }
	for _, id := range []models.Identity{admin, dev, dev2, ops} {
		backend.AddUser(models.User{
			ID:        id.ID,
			Name:      id.Name,
			Email:     id.Email,
			Role:      models.RoleRef{Name: string(id.Role)},
			Activated: true,
		})
	}
	backend.AddProject(project)

	return &harness{
		deps: &Deps{
			Ctx:      context.Background(),
			API:      backend,
			Session:  sess,
			Policy:   policy.Default,
			Settings: store,
			Log:      logging.Discard(),
			Now:      func() time.Time { return fixedNow },
		},
		backend: backend,
		store:   store,
	}
}

func task(id string, state models.TaskState, assignee *models.Identity) models.Task {
	t := models.Task{
		ID:                id,
		Name:              "Task " + id,
		Priority:          models.PriorityMedium,
		State:             state,
		Project:           models.ProjectRef{ID: project.ID, Name: project.Name},
		CreationTimestamp: models.NewTimestamp(fixedNow),
	}
	if assignee != nil {
		t.AssignedUser = &models.UserRef{ID: assignee.ID, Name: assignee.Name}
	}
	return t
}

// exec runs cmd and flattens batches. Commands that block, such as cursor
// blinks and ticks, are dropped.
func exec(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(50 * time.Millisecond):
		return nil
	}

	switch msg := msg.(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, exec(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// pump feeds the messages produced by cmd back into m until it goes quiet and
// returns everything that was produced
func pump(t *testing.T, m tea.Model, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	var seen []tea.Msg
	queue := exec(cmd)
	for rounds := 0; len(queue) > 0; rounds++ {
		require.Less(t, rounds, 100, "update loop did not settle")
		msg := queue[0]
		queue = queue[1:]
		seen = append(seen, msg)
		_, next := m.Update(msg)
		queue = append(queue, exec(next)...)
	}
	return seen
}

// press sends a key to m and pumps the result
func press(t *testing.T, m tea.Model, keys ...string) []tea.Msg {
	t.Helper()
	var seen []tea.Msg
	for _, k := range keys {
		_, cmd := m.Update(keyMsg(k))
		seen = append(seen, pump(t, m, cmd)...)
	}
	return seen
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// find returns the first message of type T
func find[T any](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
