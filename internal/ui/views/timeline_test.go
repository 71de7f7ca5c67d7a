package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/timeline"
)

func scheduled(id string, assignee *models.Identity, at time.Time) models.Task {
	t := task(id, models.StateNotStarted, assignee)
	t.AssignmentTimestamp = models.TimestampPtr(at)
	return t
}

func loadedTimeline(t *testing.T, h *harness) *TimelineView {
	t.Helper()
	v := NewTimelineView(h.deps, project)
	pump(t, v, v.Init())
	require.True(t, v.loaded)
	return v
}

func TestTimeline_OpensOnCurrentWeekAndDay(t *testing.T) {
	h := newHarness(t, admin)
	v := loadedTimeline(t, h)

	assert.Equal(t, time.Date(2024, time.March, 11, 0, 0, 0, 0, time.Local), v.WeekStart())
	assert.Equal(t, 2, v.day)
}

func TestTimeline_BucketsByScheduledDay(t *testing.T) {
	h := newHarness(t, admin)
	monday := time.Date(2024, time.March, 11, 9, 0, 0, 0, time.Local)
	h.backend.AddTask(scheduled("mon", &dev, monday))
	h.backend.AddTask(scheduled("fri", &dev2, monday.AddDate(0, 0, 4)))
	h.backend.AddTask(scheduled("sat", &dev, monday.AddDate(0, 0, 5)))
	h.backend.AddTask(scheduled("next", &dev, monday.AddDate(0, 0, 7)))

	v := loadedTimeline(t, h)

	require.Len(t, v.week.Days[0], 1)
	assert.Equal(t, "mon", v.week.Days[0][0].ID)
	require.Len(t, v.week.Days[4], 1)
	assert.Equal(t, "fri", v.week.Days[4][0].ID)
	assert.Len(t, v.week.Weekend, 1)
	assert.Equal(t, 2, v.week.Len())
}

func TestTimeline_DevelopersSeeOwnTasks(t *testing.T) {
	h := newHarness(t, dev)
	monday := time.Date(2024, time.March, 11, 9, 0, 0, 0, time.Local)
	h.backend.AddTask(scheduled("mine", &dev, monday))
	h.backend.AddTask(scheduled("theirs", &dev2, monday))
	elsewhere := scheduled("elsewhere", &dev, monday)
	elsewhere.Project = models.ProjectRef{ID: "p9", Name: "Other"}
	h.backend.AddTask(elsewhere)

	v := loadedTimeline(t, h)

	require.Len(t, v.week.Days[0], 1)
	assert.Equal(t, "mine", v.week.Days[0][0].ID)
	assert.Equal(t, 1, h.backend.Called("AssignedTasks dev-1"))
	assert.Zero(t, h.backend.Called("ProjectTasks"), "members only fetch their own tasks")
}

func TestTimeline_HeaderCountsWeekendTasks(t *testing.T) {
	h := newHarness(t, admin)
	monday := time.Date(2024, time.March, 11, 9, 0, 0, 0, time.Local)
	h.backend.AddTask(scheduled("mon", &dev, monday))
	h.backend.AddTask(scheduled("sun", &dev, monday.AddDate(0, 0, 6)))

	v := loadedTimeline(t, h)
	header := v.renderHeader()

	assert.Contains(t, header, "· 1 task")
	assert.Contains(t, header, "+1 on the weekend, through Sun Mar 17")
}

func TestTimeline_WeekNavigationRefetches(t *testing.T) {
	h := newHarness(t, admin)
	v := loadedTimeline(t, h)
	before := h.backend.Called("ProjectTasks")

	press(t, v, "]")
	assert.Equal(t, time.Date(2024, time.March, 18, 0, 0, 0, 0, time.Local), v.WeekStart())
	assert.Equal(t, before+1, h.backend.Called("ProjectTasks"))

	press(t, v, "[", "[")
	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.Local), v.WeekStart())
	assert.Equal(t, before+3, h.backend.Called("ProjectTasks"))

	press(t, v, "t")
	assert.Equal(t, time.Date(2024, time.March, 11, 0, 0, 0, 0, time.Local), v.WeekStart())
}

func TestTimeline_NextWeekShowsItsTasks(t *testing.T) {
	h := newHarness(t, admin)
	nextMonday := time.Date(2024, time.March, 18, 9, 0, 0, 0, time.Local)
	h.backend.AddTask(scheduled("later", &dev, nextMonday))

	v := loadedTimeline(t, h)
	assert.Zero(t, v.week.Len())

	press(t, v, "]")
	require.Len(t, v.week.Days[0], 1)
	assert.Equal(t, "later", v.week.Days[0][0].ID)
}

func TestTimeline_ActionsGoThroughPolicy(t *testing.T) {
	h := newHarness(t, dev)
	h.backend.AddTask(scheduled("mine", &dev, fixedNow))
	v := loadedTimeline(t, h)

	press(t, v, "s")
	stored, _ := h.backend.StoredTask("mine")
	assert.Equal(t, models.StateInProgress, stored.State)
	assert.Equal(t, models.StateInProgress, v.week.Days[2][0].State)
}

func TestTimeline_NewTaskIsScheduledOnSelectedDay(t *testing.T) {
	h := newHarness(t, admin)
	v := loadedTimeline(t, h)

	press(t, v, "left", "n")
	require.NotNil(t, v.form)
	require.NotNil(t, v.form.assignAt)
	assert.Equal(t, timeline.DayDate(v.WeekStart(), 1), *v.form.assignAt)

	press(t, v, "esc")
	assert.Nil(t, v.form)
}

func TestTimeline_DevelopersCanNotCreate(t *testing.T) {
	h := newHarness(t, dev)
	v := loadedTimeline(t, h)

	press(t, v, "n")
	assert.Nil(t, v.form)
}

func TestTimeline_SwitchesToBoard(t *testing.T) {
	h := newHarness(t, dev)
	v := loadedTimeline(t, h)

	_, ok := find[ShowBoard](press(t, v, "b"))
	assert.True(t, ok)
}
