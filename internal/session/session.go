// Package session holds the one authenticated identity and the selected
// project for the running client. A single *Session is created at startup and
// handed to every view; nothing reads it through a global.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/tgienger/pmt/internal/db"
	"github.com/tgienger/pmt/internal/models"
)

// ErrNotAuthenticated is returned when an operation needs a logged-in identity
var ErrNotAuthenticated = errors.New("not logged in")

// Store persists the session between runs
type Store interface {
	LoadSession() (*db.StoredSession, error)
	SaveSession(s db.StoredSession) error
	SetActiveProject(projectID string) error
	ClearSession() error
}

// Session is the identity context. It is safe for concurrent use; bubbletea
// commands read the token from their own goroutines.
type Session struct {
	store Store
	log   *slog.Logger

	mu            sync.RWMutex
	identity      models.Identity
	token         *memguard.Enclave
	activeProject string
}

// New returns an empty, logged-out session backed by store
func New(store Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, log: logger}
}

// Restore loads the persisted session, if any. A stored identity with an
// unknown role is discarded.
func (s *Session) Restore() error {
	stored, err := s.store.LoadSession()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if stored == nil {
		return nil
	}

	if _, err := models.ParseRole(string(stored.Identity.Role)); err != nil || stored.Identity.ID == "" || stored.Token == "" {
		s.log.Warn("discarding unusable stored session", "user", stored.Identity.ID, "error", err)
		return s.store.ClearSession()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = stored.Identity
	s.token = seal(stored.Token)
	s.activeProject = stored.ActiveProjectID
	s.log.Info("session restored", "user", s.identity.ID, "role", s.identity.Role)
	return nil
}

// Login replaces the current identity and persists it
func (s *Session) Login(identity models.Identity, token string) error {
	if identity.ID == "" || token == "" {
		return fmt.Errorf("login: incomplete auth payload")
	}
	if _, err := models.ParseRole(string(identity.Role)); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if err := s.store.SaveSession(db.StoredSession{Identity: identity, Token: token}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	s.token = seal(token)
	s.activeProject = ""
	s.log.Info("logged in", "user", identity.ID, "role", identity.Role)
	return nil
}

// Logout clears identity, token and active project, in memory and on disk.
// Memory is cleared even if the store fails.
func (s *Session) Logout() error {
	s.mu.Lock()
	user := s.identity.ID
	s.identity = models.Identity{}
	s.token = nil
	s.activeProject = ""
	s.mu.Unlock()

	s.log.Info("logged out", "user", user)
	if err := s.store.ClearSession(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Identity returns the current actor. It is the zero Identity when logged out.
func (s *Session) Identity() models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Authenticated reports whether someone is logged in
func (s *Session) Authenticated() bool {
	return !s.Identity().IsZero()
}

// Token returns the bearer token, or "" when logged out
func (s *Session) Token() string {
	s.mu.RLock()
	enclave := s.token
	s.mu.RUnlock()

	if enclave == nil {
		return ""
	}
	buf, err := enclave.Open()
	if err != nil {
		s.log.Error("open token enclave", "error", err)
		return ""
	}
	defer buf.Destroy()
	return string(buf.Bytes())
}

// ActiveProject returns the selected project id, or ""
func (s *Session) ActiveProject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeProject
}

// SetActiveProject selects a project and persists the choice. An empty id
// clears the selection.
func (s *Session) SetActiveProject(projectID string) error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	if err := s.store.SetActiveProject(projectID); err != nil {
		return fmt.Errorf("save active project: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeProject = projectID
	return nil
}

func seal(token string) *memguard.Enclave {
	if token == "" {
		return nil
	}
	return memguard.NewEnclave([]byte(token))
}
