package api

import (
	"context"
	"net/http"

	"github.com/tgienger/pmt/internal/models"
)

// Notes lists the notes on a task, oldest first
func (c *Client) Notes(ctx context.Context, taskID string) ([]models.TaskNote, error) {
	var notes []models.TaskNote
	if err := c.get(ctx, pathf("/task-notes/task/%s", taskID), &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// AddNote posts a note on a task
func (c *Client) AddNote(ctx context.Context, taskID string, req NoteRequest) (*models.TaskNote, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	var note models.TaskNote
	if err := c.do(ctx, http.MethodPost, pathf("/task-notes/task/%s", taskID), req, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateNote replaces the text of a note
func (c *Client) UpdateNote(ctx context.Context, noteID, text string) (*models.TaskNote, error) {
	req := noteUpdateRequest{NoteText: text}
	if err := Validate(req); err != nil {
		return nil, err
	}
	var note models.TaskNote
	if err := c.do(ctx, http.MethodPut, pathf("/task-notes/%s", noteID), req, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNote deletes a note
func (c *Client) DeleteNote(ctx context.Context, noteID string) error {
	return c.do(ctx, http.MethodDelete, pathf("/task-notes/%s", noteID), nil, nil)
}

// NoteCount returns the number of notes on a task
func (c *Client) NoteCount(ctx context.Context, taskID string) (int, error) {
	var n int
	if err := c.get(ctx, pathf("/task-notes/task/%s/count", taskID), &n); err != nil {
		return 0, err
	}
	return n, nil
}
