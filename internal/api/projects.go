package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/tgienger/pmt/internal/models"
)

// ProjectsByStatus lists projects in one status
func (c *Client) ProjectsByStatus(ctx context.Context, status models.ProjectStatus) ([]models.Project, error) {
	if !slices.Contains(models.ProjectStatuses, status) {
		return nil, fmt.Errorf("%w: unknown project status %q", ErrInvalidRequest, status)
	}
	var projects []models.Project
	if err := c.get(ctx, pathf("/projects/status/%s", string(status)), &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Project fetches a single project
func (c *Client) Project(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := c.get(ctx, pathf("/projects/%s", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a new project
func (c *Client) CreateProject(ctx context.Context, req ProjectRequest) (*models.Project, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	var p models.Project
	if err := c.do(ctx, http.MethodPost, "/projects", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject updates an existing project
func (c *Client) UpdateProject(ctx context.Context, id string, req ProjectRequest) (*models.Project, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	var p models.Project
	if err := c.do(ctx, http.MethodPut, pathf("/projects/%s", id), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject deletes a project
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathf("/projects/%s", id), nil, nil)
}

// AssignMember adds a user to a project
func (c *Client) AssignMember(ctx context.Context, projectID, userID string) error {
	return c.do(ctx, http.MethodPost, pathf("/projects/%s/assign/%s", projectID, userID), nil, nil)
}

// RemoveMember removes a user from a project
func (c *Client) RemoveMember(ctx context.Context, projectID, userID string) error {
	return c.do(ctx, http.MethodDelete, pathf("/projects/%s/assign/%s", projectID, userID), nil, nil)
}

// SetProjectStatus changes a project's status
func (c *Client) SetProjectStatus(ctx context.Context, projectID string, status models.ProjectStatus) error {
	if !slices.Contains(models.ProjectStatuses, status) {
		return fmt.Errorf("%w: unknown project status %q", ErrInvalidRequest, status)
	}
	return c.do(ctx, http.MethodPut, pathf("/projects/%s/status/%s", projectID, string(status)), nil, nil)
}
