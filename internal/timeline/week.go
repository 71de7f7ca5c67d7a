// Package timeline projects a project's tasks onto a Monday to Friday grid.
package timeline

import (
	"time"

	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
)

// WorkDays is the number of columns in the grid, Monday to Friday
const WorkDays = 5

// DateLayout is the format of WeekTask.WeekDate
const DateLayout = "2006-01-02"

// DayNames are the grid's column headings
var DayNames = [WorkDays]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// WeekTask is a task placed on a day of the week
type WeekTask struct {
	models.Task
	DayOfWeek int    // 0=Monday .. 6=Sunday
	WeekDate  string // YYYY-MM-DD of the reference date
}

// Week is the result of bucketing. Weekend tasks are computed and kept apart
// from the grid, which only has work days.
type Week struct {
	Start   time.Time
	Days    [WorkDays][]WeekTask
	Weekend []WeekTask
}

// WeekStart returns midnight of the Monday of anchor's week. Sunday belongs
// to the week that started six days earlier.
func WeekStart(anchor time.Time) time.Time {
	day := midnight(anchor)
	wd := int(day.Weekday())
	if wd == 0 {
		return day.AddDate(0, 0, -6)
	}
	return day.AddDate(0, 0, -(wd - 1))
}

// Next returns the start of the following week
func Next(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 7)
}

// Prev returns the start of the previous week
func Prev(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, -7)
}

// DayIndex maps a weekday onto Monday=0 .. Sunday=6
func DayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DayDate returns the time a task created in column day is scheduled at:
// noon of that day
func DayDate(weekStart time.Time, day int) time.Time {
	d := midnight(weekStart).AddDate(0, 0, day)
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, d.Location())
}

// Bucket places tasks on the days of the week starting at weekStart, after
// hiding tasks the actor may not see. weekStart is normalised with WeekStart.
// Bucket is pure: the same input always yields the same Week.
func Bucket(tasks []models.Task, weekStart time.Time, actor models.Identity) Week {
	start := WeekStart(weekStart)
	w := Week{Start: start}
	end := w.End()

	for _, t := range Visible(tasks, actor) {
		ref := t.ReferenceTime().In(start.Location())
		day := midnight(ref)
		if day.Before(start) || day.After(end) {
			continue
		}

		wt := WeekTask{
			Task:      t,
			DayOfWeek: DayIndex(ref),
			WeekDate:  ref.Format(DateLayout),
		}
		if wt.DayOfWeek < WorkDays {
			w.Days[wt.DayOfWeek] = append(w.Days[wt.DayOfWeek], wt)
		} else {
			w.Weekend = append(w.Weekend, wt)
		}
	}
	return w
}

// Visible keeps the tasks the actor may see on the timeline. Developers and
// devops only see their own tasks; admins see everything.
func Visible(tasks []models.Task, actor models.Identity) []models.Task {
	if !policy.IsMember(actor) {
		return tasks
	}
	var out []models.Task
	for _, t := range tasks {
		if t.AssignedTo(actor.ID) {
			out = append(out, t)
		}
	}
	return out
}

// Dates returns the calendar date of each grid column
func (w Week) Dates() [WorkDays]time.Time {
	var out [WorkDays]time.Time
	for i := range out {
		out[i] = w.Start.AddDate(0, 0, i)
	}
	return out
}

// End returns the Sunday that closes the week
func (w Week) End() time.Time {
	return w.Start.AddDate(0, 0, 6)
}

// Len returns the number of tasks in the grid, weekend excluded
func (w Week) Len() int {
	n := 0
	for _, d := range w.Days {
		n += len(d)
	}
	return n
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
