package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tgienger/pmt/internal/models"
)

// StoredSession is the persisted login
type StoredSession struct {
	Identity        models.Identity
	Token           string
	ActiveProjectID string
	CreatedAt       time.Time
}

// SaveSession replaces the persisted session
func (db *DB) SaveSession(s StoredSession) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO session (id, user_id, name, email, role, token, active_project_id, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			token = excluded.token,
			active_project_id = excluded.active_project_id,
			created_at = excluded.created_at
	`, s.Identity.ID, s.Identity.Name, s.Identity.Email, string(s.Identity.Role),
		s.Token, s.ActiveProjectID, createdAt.UTC().Format(time.RFC3339Nano))
	return err
}

// LoadSession returns the persisted session, or nil if there is none
func (db *DB) LoadSession() (*StoredSession, error) {
	var (
		s         StoredSession
		role      string
		createdAt string
	)
	err := db.QueryRow(`
		SELECT user_id, name, email, role, token, active_project_id, created_at
		FROM session WHERE id = 1
	`).Scan(&s.Identity.ID, &s.Identity.Name, &s.Identity.Email, &role, &s.Token, &s.ActiveProjectID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.Identity.Role = models.Role(role)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		s.CreatedAt = t
	}
	return &s, nil
}

// SetActiveProject records the selected project for the persisted session
func (db *DB) SetActiveProject(projectID string) error {
	_, err := db.Exec("UPDATE session SET active_project_id = ? WHERE id = 1", projectID)
	return err
}

// ClearSession deletes the persisted session
func (db *DB) ClearSession() error {
	_, err := db.Exec("DELETE FROM session")
	return err
}
