package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tgienger/pmt/internal/models"
)

// AuthResponse is returned by login and register
type AuthResponse struct {
	Token  string `json:"token"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Identity converts the payload into the session identity
func (r AuthResponse) Identity() (models.Identity, error) {
	role, err := models.ParseRole(r.Role)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{ID: r.UserID, Name: r.Name, Email: r.Email, Role: role}, nil
}

// Login authenticates with email and password
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", req)
}

// Register creates an account and logs it in
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, path string, req any) (*AuthResponse, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, path, req, &resp)
	var se *StatusError
	if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("POST %s: %w: response has no token", path, ErrRequestFailed)
	}
	return &resp, nil
}
