package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/pmt/internal/models"
)

var (
	admin = models.Identity{ID: "a1", Role: models.RoleAdmin}
	dev   = models.Identity{ID: "u1", Role: models.RoleDeveloper}
	ops   = models.Identity{ID: "u3", Role: models.RoleDevOps}
)

// March 2024: Monday the 4th .. Sunday the 10th.
func day(d, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

func created(id string, at time.Time, assignee string) models.Task {
	t := models.Task{ID: id, CreationTimestamp: models.NewTimestamp(at)}
	if assignee != "" {
		t.AssignedUser = &models.UserRef{ID: assignee}
	}
	return t
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name   string
		anchor time.Time
		want   time.Time
	}{
		{"monday", day(4, 9), day(4, 0)},
		{"wednesday", day(6, 23), day(4, 0)},
		{"saturday", day(9, 1), day(4, 0)},
		{"sunday goes back six days", day(10, 15), day(4, 0)},
		{"next monday", day(11, 0), day(11, 0)},
		{"across a month boundary", time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekStart(tt.anchor))
		})
	}
}

func TestNextPrev(t *testing.T) {
	start := day(4, 0)
	assert.Equal(t, day(11, 0), Next(start))
	assert.Equal(t, time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), Prev(start))
	assert.Equal(t, start, Prev(Next(start)))
}

func TestDayIndex(t *testing.T) {
	assert.Equal(t, 0, DayIndex(day(4, 12)))
	assert.Equal(t, 4, DayIndex(day(8, 12)))
	assert.Equal(t, 5, DayIndex(day(9, 12)))
	assert.Equal(t, 6, DayIndex(day(10, 12)))
}

func TestBucket_DayAssignment(t *testing.T) {
	tasks := []models.Task{
		created("mon", day(4, 9), ""),
		created("fri", day(8, 17), ""),
		created("before", day(3, 23), ""),
		created("after", day(11, 0), ""),
	}

	assignedWed := created("assigned", day(1, 9), "")
	assignedWed.AssignmentTimestamp = models.TimestampPtr(day(6, 12))
	tasks = append(tasks, assignedWed)

	w := Bucket(tasks, day(6, 10), admin)

	assert.Equal(t, day(4, 0), w.Start)
	require.Len(t, w.Days[0], 1)
	assert.Equal(t, "mon", w.Days[0][0].ID)
	assert.Equal(t, 0, w.Days[0][0].DayOfWeek)
	assert.Equal(t, "2024-03-04", w.Days[0][0].WeekDate)

	require.Len(t, w.Days[2], 1)
	assert.Equal(t, "assigned", w.Days[2][0].ID, "assignment time wins over creation time")
	assert.Equal(t, "2024-03-06", w.Days[2][0].WeekDate)

	require.Len(t, w.Days[4], 1)
	assert.Equal(t, "fri", w.Days[4][0].ID)

	assert.Equal(t, 3, w.Len())
	assert.Empty(t, w.Weekend)
}

func TestBucket_SundayBoundary(t *testing.T) {
	sunday := created("sun", day(10, 23), "")
	saturday := created("sat", day(9, 8), "")

	w := Bucket([]models.Task{sunday, saturday}, day(4, 0), admin)

	assert.Equal(t, 0, w.Len(), "weekend tasks never reach the grid")
	require.Len(t, w.Weekend, 2)
	assert.Equal(t, 6, w.Weekend[0].DayOfWeek)
	assert.Equal(t, "2024-03-10", w.Weekend[0].WeekDate)
	assert.Equal(t, 5, w.Weekend[1].DayOfWeek)
	assert.Equal(t, day(10, 0), w.End())
}

func TestBucket_Visibility(t *testing.T) {
	tasks := []models.Task{
		created("mine", day(5, 9), "u1"),
		created("theirs", day(5, 9), "u2"),
		created("nobody", day(5, 9), ""),
		created("ops", day(5, 9), "u3"),
	}

	ids := func(w Week) []string {
		var out []string
		for _, wt := range w.Days[1] {
			out = append(out, wt.ID)
		}
		return out
	}

	assert.Equal(t, []string{"mine", "theirs", "nobody", "ops"}, ids(Bucket(tasks, day(4, 0), admin)))
	assert.Equal(t, []string{"mine"}, ids(Bucket(tasks, day(4, 0), dev)))
	assert.Equal(t, []string{"ops"}, ids(Bucket(tasks, day(4, 0), ops)))
}

func TestBucket_Idempotent(t *testing.T) {
	tasks := []models.Task{
		created("a", day(4, 9), "u1"),
		created("b", day(7, 9), "u1"),
		created("c", day(10, 9), "u1"),
	}
	first := Bucket(tasks, day(4, 0), dev)
	second := Bucket(tasks, day(4, 0), dev)
	assert.Equal(t, first, second)

	assert.Equal(t, "a", tasks[0].ID, "input is not reordered")
}

func TestBucket_NavigationRebuckets(t *testing.T) {
	tasks := []models.Task{
		created("this", day(5, 9), ""),
		created("next", day(12, 9), ""),
	}
	start := WeekStart(day(5, 9))

	w := Bucket(tasks, Next(start), admin)
	require.Len(t, w.Days[1], 1)
	assert.Equal(t, "next", w.Days[1][0].ID)

	w = Bucket(tasks, Prev(Next(start)), admin)
	require.Len(t, w.Days[1], 1)
	assert.Equal(t, "this", w.Days[1][0].ID)
}

func TestDayDate(t *testing.T) {
	assert.Equal(t, day(6, 12), DayDate(day(4, 0), 2))
	assert.Equal(t, day(4, 12), DayDate(day(4, 18), 0))
}

func TestWeek_Dates(t *testing.T) {
	w := Week{Start: day(4, 0)}
	dates := w.Dates()
	assert.Equal(t, day(4, 0), dates[0])
	assert.Equal(t, day(8, 0), dates[4])
}
