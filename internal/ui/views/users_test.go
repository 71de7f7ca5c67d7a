package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/pmt/internal/models"
)

func loadedUsers(t *testing.T, h *harness) *UsersView {
	t.Helper()
	v := NewUsersView(h.deps)
	pump(t, v, v.Init())
	require.True(t, v.loaded)
	return v
}

func TestUsers_ListsActiveUsersByRole(t *testing.T) {
	h := newHarness(t, admin)
	h.backend.AddUser(models.User{ID: "gone", Name: "Gus", Role: models.RoleRef{Name: "DEVELOPER"}, Activated: true, Hidden: true})
	h.backend.AddUser(models.User{ID: "new", Name: "Nia", Role: models.RoleRef{Name: "DEVELOPER"}})

	v := loadedUsers(t, h)
	assert.Len(t, v.visible(), 4)

	press(t, v, "tab")
	require.Len(t, v.visible(), 1)
	assert.Equal(t, admin.ID, v.visible()[0].ID)

	press(t, v, "tab")
	assert.Len(t, v.visible(), 2, "developers")
}

func TestUsers_SoftDelete(t *testing.T) {
	h := newHarness(t, admin)
	v := loadedUsers(t, h)

	// Admins can not be deactivated.
	press(t, v, "d")
	assert.False(t, v.confirmingDelete)

	press(t, v, "down", "d")
	require.True(t, v.confirmingDelete)
	assert.Equal(t, dev.ID, v.deleteTarget.ID)

	status, ok := find[StatusMsg](press(t, v, "y"))
	require.True(t, ok)
	assert.Equal(t, "Dan deactivated", status.Text)
	assert.Equal(t, 1, h.backend.Called("SoftDeleteUser dev-1"))
	assert.Len(t, v.visible(), 3)
}

func TestUsers_BackToProjects(t *testing.T) {
	h := newHarness(t, admin)
	v := loadedUsers(t, h)

	_, ok := find[BackToProjects](press(t, v, "esc"))
	assert.True(t, ok)
}
