package views

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/pmt/internal/api"
	"github.com/tgienger/pmt/internal/lifecycle"
	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
)

func loadedBoard(t *testing.T, h *harness) *BoardView {
	t.Helper()
	v := NewBoardView(h.deps, project)
	pump(t, v, v.Init())
	require.True(t, v.loaded)
	return v
}

func taskIDs(tasks []models.Task) []string {
	var out []string
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestBoard_GroupsTasksIntoColumns(t *testing.T) {
	h := newHarness(t, admin)
	h.backend.AddTask(task("a", models.StateNotStarted, &dev))
	h.backend.AddTask(task("b", models.StateRejected, &dev))
	h.backend.AddTask(task("c", models.StateInProgress, &dev2))
	h.backend.AddTask(task("d", models.StateWaitingForApproval, &dev))
	h.backend.AddTask(task("e", models.StateApproved, nil))

	v := loadedBoard(t, h)

	assert.Len(t, v.board[lifecycle.ColumnTodo], 2)
	assert.Len(t, v.board[lifecycle.ColumnDoing], 1)
	assert.Len(t, v.board[lifecycle.ColumnDone], 2)
	assert.Len(t, v.users, 4, "admins get the user list for assignment")
}

func TestBoard_ShowsEveryTaskToDevelopers(t *testing.T) {
	h := newHarness(t, dev)
	h.backend.AddTask(task("a", models.StateNotStarted, &dev))
	h.backend.AddTask(task("b", models.StateNotStarted, &dev2))

	v := loadedBoard(t, h)
	assert.Len(t, v.board[lifecycle.ColumnTodo], 2)
	assert.Zero(t, h.backend.Called("Users"))
}

func TestBoard_AssigneeStartsTask(t *testing.T) {
	h := newHarness(t, dev)
	h.backend.AddTask(task("a", models.StateNotStarted, &dev))
	v := loadedBoard(t, h)

	msgs := press(t, v, "s")

	assert.Equal(t, 1, h.backend.Called("Transition a start"))
	stored, _ := h.backend.StoredTask("a")
	assert.Equal(t, models.StateInProgress, stored.State)

	status, ok := find[StatusMsg](msgs)
	require.True(t, ok)
	assert.Equal(t, "Task started", status.Text)

	// The board re-fetched and the card moved.
	assert.Empty(t, v.board[lifecycle.ColumnTodo])
	assert.Len(t, v.board[lifecycle.ColumnDoing], 1)
}

func TestBoard_ActsOnHighlightedCard(t *testing.T) {
	h := newHarness(t, dev)
	h.backend.AddTask(task("a", models.StateNotStarted, &dev))
	h.backend.AddTask(task("b", models.StateNotStarted, &dev))
	v := loadedBoard(t, h)

	press(t, v, "down")
	press(t, v, "s")

	assert.Equal(t, 1, h.backend.Called("Transition b start"))
	assert.Zero(t, h.backend.Called("Transition a"))
	assert.Equal(t, []string{"a"}, taskIDs(v.board[lifecycle.ColumnTodo]))
}

func TestBoard_FinishWaitsForApproval(t *testing.T) {
	h := newHarness(t, dev)
	h.backend.AddTask(task("a", models.StateInProgress, &dev))
	v := loadedBoard(t, h)
	v.col = int(lifecycle.ColumnDoing)

	press(t, v, "f")

	stored, _ := h.backend.StoredTask("a")
	assert.Equal(t, models.StateWaitingForApproval, stored.State)
}

func TestBoard_RejectsForbiddenActionWithoutCallingBackend(t *testing.T) {
	h := newHarness(t, dev)
	h.backend.AddTask(task("a", models.StateNotStarted, &dev2))
	v := loadedBoard(t, h)

	msgs := press(t, v, "s")

	failed, ok := find[Failed](msgs)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, policy.ErrUnauthorized)
	assert.Zero(t, h.backend.Called("Transition"))
}

func TestBoard_IllegalTransitionIsReported(t *testing.T) {
	h := newHarness(t, admin)
	h.backend.AddTask(task("a", models.StateNotStarted, &dev))
	v := loadedBoard(t, h)

	msgs := press(t, v, "a")

	failed, ok := find[Failed](msgs)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, lifecycle.ErrInvalidTransition)
	assert.Zero(t, h.backend.Called("Transition"))
}

func TestBoard_AdminApproves(t *testing.T) {
	h := newHarness(t, admin)
	h.backend.AddTask(task("a", models.StateWaitingForApproval, &dev))
	v := loadedBoard(t, h)
	v.col = int(lifecycle.ColumnDone)

	press(t, v, "a")

	stored, _ := h.backend.StoredTask("a")
	assert.Equal(t, models.StateApproved, stored.State)
	assert.NotNil(t, stored.CompletionTimestamp)
}

func TestBoard_DropsStaleResponses(t *testing.T) {
	h := newHarness(t, admin)
	h.backend.AddTask(task("a", models.StateNotStarted, &dev))
	v := loadedBoard(t, h)

	stale := exec(v.load())
	h.backend.AddTask(task("b", models.StateNotStarted, &dev))
	fresh := exec(v.load())

	require.Len(t, fresh, 1)
	v.Update(fresh[0])
	require.Len(t, stale, 1)
	v.Update(stale[0])

	assert.Len(t, v.board[lifecycle.ColumnTodo], 2, "older response must not overwrite newer")
}

func TestBoard_DeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t, admin)
	h.backend.AddTask(task("a", models.StateNotStarted, &dev))
	v := loadedBoard(t, h)

	press(t, v, "d")
	assert.True(t, v.confirmingDelete)
	press(t, v, "n")
	assert.False(t, v.confirmingDelete)
	assert.Zero(t, h.backend.Called("DeleteTask"))

	press(t, v, "d", "y")
	assert.Equal(t, 1, h.backend.Called("DeleteTask a"))
	assert.Empty(t, v.tasks)
}

func TestBoard_DevelopersCanNotDelete(t *testing.T) {
	h := newHarness(t, dev)
	h.backend.AddTask(task("a", models.StateNotStarted, &dev))
	v := loadedBoard(t, h)

	press(t, v, "d")
	assert.False(t, v.confirmingDelete)
}

func TestBoard_AssignPicker(t *testing.T) {
	h := newHarness(t, admin)
	h.backend.AddTask(task("a", models.StateNotStarted, nil))
	v := loadedBoard(t, h)

	press(t, v, "u")
	require.True(t, v.assigning)

	// Candidates are developers and devops only: Dan, Deb, Oz.
	press(t, v, "down", "enter")
	assert.False(t, v.assigning)
	assert.Equal(t, 1, h.backend.Called("AssignTask a dev-2"))

	stored, _ := h.backend.StoredTask("a")
	assert.True(t, stored.AssignedTo(dev2.ID))
}

func TestBoard_Navigation(t *testing.T) {
	h := newHarness(t, dev)
	h.backend.AddTask(task("a", models.StateNotStarted, &dev))
	v := loadedBoard(t, h)

	msgs := press(t, v, "enter")
	open, ok := find[OpenTask](msgs)
	require.True(t, ok)
	assert.Equal(t, "a", open.TaskID)

	_, ok = find[ShowTimeline](press(t, v, "w"))
	assert.True(t, ok)

	_, ok = find[BackToProjects](press(t, v, "esc"))
	assert.True(t, ok)

	press(t, v, "left")
	assert.Equal(t, int(lifecycle.ColumnDone), v.col)
}

func TestBoard_LoadFailureIsReported(t *testing.T) {
	h := newHarness(t, dev)
	h.backend.Fail("ProjectTasks", api.ErrBackendUnavailable)

	v := NewBoardView(h.deps, project)
	msgs := pump(t, v, v.Init())

	failed, ok := find[Failed](msgs)
	require.True(t, ok)
	assert.True(t, errors.Is(failed.Err, api.ErrBackendUnavailable))
	assert.False(t, v.loaded)
}
