package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tgienger/pmt/internal/lifecycle"
	"github.com/tgienger/pmt/internal/models"
)

// ProjectTasks returns every task in a project
func (c *Client) ProjectTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	var rs []taskResponse
	if err := c.get(ctx, pathf("/tasks/project/%s", projectID), &rs); err != nil {
		return nil, err
	}
	return tasksFrom(rs), nil
}

// AssignedTasks returns the tasks assigned to a user
func (c *Client) AssignedTasks(ctx context.Context, userID string) ([]models.Task, error) {
	var rs []taskResponse
	if err := c.get(ctx, pathf("/tasks/assigned/%s", userID), &rs); err != nil {
		return nil, err
	}
	return tasksFrom(rs), nil
}

// Task fetches a single task
func (c *Client) Task(ctx context.Context, id string) (*models.Task, error) {
	var r taskResponse
	if err := c.get(ctx, pathf("/tasks/%s", id), &r); err != nil {
		return nil, err
	}
	t := r.task()
	return &t, nil
}

// CreateTask creates a new task
func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (*models.Task, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	return c.sendTask(ctx, http.MethodPost, "/tasks", req)
}

// UpdateTask updates an existing task
func (c *Client) UpdateTask(ctx context.Context, id string, req TaskUpdateRequest) (*models.Task, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if req.State != "" {
		if _, err := models.ParseTaskState(string(req.State)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return c.sendTask(ctx, http.MethodPut, pathf("/tasks/%s", id), req)
}

// DeleteTask deletes a task
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathf("/tasks/%s", id), nil, nil)
}

// AssignTask assigns a task to a user
func (c *Client) AssignTask(ctx context.Context, taskID, userID string) (*models.Task, error) {
	return c.sendTask(ctx, http.MethodPut, pathf("/tasks/%s/assign/%s", taskID, userID), nil)
}

// SetTaskState sets the state directly, bypassing the lifecycle endpoints
func (c *Client) SetTaskState(ctx context.Context, taskID string, state models.TaskState) (*models.Task, error) {
	if _, err := models.ParseTaskState(string(state)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return c.sendTask(ctx, http.MethodPut, pathf("/tasks/%s/status/%s", taskID, string(state)), nil)
}

// Transition persists a lifecycle action through its dedicated endpoint
func (c *Client) Transition(ctx context.Context, taskID string, action lifecycle.Action) (*models.Task, error) {
	if _, err := lifecycle.ParseAction(string(action)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return c.sendTask(ctx, http.MethodPut, pathf("/tasks/%s/", taskID)+string(action), nil)
}

// MarkNotesRead clears the unread-notes flag
func (c *Client) MarkNotesRead(ctx context.Context, taskID string) (*models.Task, error) {
	return c.sendTask(ctx, http.MethodPut, pathf("/tasks/%s/mark-notes-read", taskID), nil)
}

func (c *Client) sendTask(ctx context.Context, method, path string, in any) (*models.Task, error) {
	var r taskResponse
	if err := c.do(ctx, method, path, in, &r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		return nil, nil
	}
	t := r.task()
	return &t, nil
}
