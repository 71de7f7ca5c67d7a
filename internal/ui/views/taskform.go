package views

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/tgienger/pmt/internal/api"
	"github.com/tgienger/pmt/internal/models"
	"github.com/tgienger/pmt/internal/policy"
)

// taskFields holds the values the task form edits
type taskFields struct {
	Name        string
	Description string
	Priority    models.Priority
	Estimate    string
	AssigneeID  string
}

// taskForm creates a task, or edits one when existing is set
type taskForm struct {
	form      *huh.Form
	fields    *taskFields
	existing  *models.Task
	projectID string
	assignAt  *time.Time
}

func newTaskForm(projectID string, existing *models.Task, assignAt *time.Time, users []models.User, width int) *taskForm {
	f := &taskFields{Priority: models.PriorityMedium}
	if existing != nil {
		f.Name = existing.Name
		f.Description = existing.Description
		f.Priority = existing.Priority
		if existing.EstimatedTime != nil {
			f.Estimate = strconv.Itoa(*existing.EstimatedTime)
		}
		if existing.AssignedUser != nil {
			f.AssigneeID = existing.AssignedUser.ID
		}
	}

	assignees := []huh.Option[string]{huh.NewOption("Unassigned", "")}
	for _, u := range policy.AssignableUsers(users) {
		assignees = append(assignees, huh.NewOption(fmt.Sprintf("%s (%s)", u.Name, u.Role.Name), u.ID))
	}

	title := "New Task"
	if existing != nil {
		title = "Edit Task"
	}
	if assignAt != nil {
		title += " for " + assignAt.Format("Mon Jan 2")
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Placeholder("Task name").
				CharLimit(255).
				Value(&f.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				CharLimit(2000).
				Lines(3).
				Value(&f.Description),
			huh.NewSelect[models.Priority]().
				Title("Priority").
				Options(
					huh.NewOption("Low", models.PriorityLow),
					huh.NewOption("Medium", models.PriorityMedium),
					huh.NewOption("High", models.PriorityHigh),
				).
				Value(&f.Priority),
			huh.NewInput().
				Title("Estimated hours").
				Placeholder("optional").
				CharLimit(4).
				Value(&f.Estimate).
				Validate(validateEstimate),
			huh.NewSelect[string]().
				Title("Assignee").
				Options(assignees...).
				Value(&f.AssigneeID),
		),
	).WithShowHelp(true).WithWidth(clamp(width-4, 30, 70))

	return &taskForm{form: form, fields: f, existing: existing, projectID: projectID, assignAt: assignAt}
}

func validateEstimate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a whole number of hours greater than 0")
	}
	return nil
}

func (f *taskForm) estimate() *int {
	n, err := strconv.Atoi(strings.TrimSpace(f.fields.Estimate))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// update feeds msg to the form. done is true once the form is submitted or
// aborted; cmd then holds the save, if any.
func (f *taskForm) update(d *Deps, msg tea.Msg) (done bool, cmd tea.Cmd) {
	model, cmd := f.form.Update(msg)
	if form, ok := model.(*huh.Form); ok {
		f.form = form
	}

	switch f.form.State {
	case huh.StateCompleted:
		return true, f.save(d)
	case huh.StateAborted:
		return true, nil
	}
	return false, cmd
}

// save sends the form to the backend
func (f *taskForm) save(d *Deps) tea.Cmd {
	name := strings.TrimSpace(f.fields.Name)
	desc := strings.TrimSpace(f.fields.Description)

	if f.existing == nil {
		req := api.TaskRequest{
			Name:           name,
			Description:    desc,
			Priority:       f.fields.Priority,
			ProjectID:      f.projectID,
			EstimatedTime:  f.estimate(),
			AssignedUserID: f.fields.AssigneeID,
		}
		if f.assignAt != nil {
			req.AssignmentTimestamp = models.TimestampPtr(*f.assignAt)
		}
		if err := api.Validate(req); err != nil {
			return Fail(err)
		}
		return d.write("Task created", func(ctx context.Context) error {
			_, err := d.API.CreateTask(ctx, req)
			return err
		})
	}

	id := f.existing.ID
	req := api.TaskUpdateRequest{
		Name:           name,
		Description:    desc,
		Priority:       f.fields.Priority,
		ProjectID:      f.projectID,
		EstimatedTime:  f.estimate(),
		AssignedUserID: f.fields.AssigneeID,
	}
	if err := api.Validate(req); err != nil {
		return Fail(err)
	}
	return d.write("Task updated", func(ctx context.Context) error {
		_, err := d.API.UpdateTask(ctx, id, req)
		return err
	})
}

func (f *taskForm) view() string {
	return f.form.View()
}
