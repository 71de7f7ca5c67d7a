package api

import (
	"context"
	"net/http"

	"github.com/tgienger/pmt/internal/models"
)

// Users lists every user
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.get(ctx, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SoftDeleteUser hides a user without removing their history
func (c *Client) SoftDeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, pathf("/users/%s/soft-delete", id), nil, nil)
}

// ActiveProject returns the project the user last opened, or ""
func (c *Client) ActiveProject(ctx context.Context, userID string) (string, error) {
	var id *string
	if err := c.get(ctx, pathf("/users/%s/active-project", userID), &id); err != nil {
		return "", err
	}
	if id == nil {
		return "", nil
	}
	return *id, nil
}

// SetActiveProject records the user's active project on the server
func (c *Client) SetActiveProject(ctx context.Context, userID, projectID string) error {
	return c.do(ctx, http.MethodPut, pathf("/users/%s/active-project/%s", userID, projectID), nil, nil)
}
