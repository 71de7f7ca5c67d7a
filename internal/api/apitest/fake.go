// Package apitest provides an in-memory stand-in for the backend, for tests of
// code that talks to the api.Client.
package apitest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tgienger/pmt/internal/api"
	"github.com/tgienger/pmt/internal/lifecycle"
	"github.com/tgienger/pmt/internal/models"
)

// Fake keeps projects, tasks, notes and users in memory and records every call.
// Errors set with Fail are returned by the named method until cleared.
type Fake struct {
	mu sync.Mutex

	projects map[string]models.Project
	tasks    map[string]models.Task
	notes    map[string][]models.TaskNote
	users    []models.User
	accounts map[string]api.AuthResponse // by email
	active   map[string]string           // user id to project id

	errs  map[string]error
	calls []string

	// Now stamps transitions and new records
	Now func() time.Time
}

// New returns an empty backend
func New() *Fake {
	return &Fake{
		projects: make(map[string]models.Project),
		tasks:    make(map[string]models.Task),
		notes:    make(map[string][]models.TaskNote),
		accounts: make(map[string]api.AuthResponse),
		active:   make(map[string]string),
		errs:     make(map[string]error),
		Now:      time.Now,
	}
}

// Fail makes method return err; a nil err clears it
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// Calls returns the recorded calls, formatted "Method arg1 arg2"
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Called counts the calls to method
func (f *Fake) Called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method || strings.HasPrefix(c, method+" ") {
			n++
		}
	}
	return n
}

func (f *Fake) record(method string, args ...string) error {
	f.calls = append(f.calls, strings.TrimSpace(method+" "+strings.Join(args, " ")))
	return f.errs[method]
}

// AddProject stores p
func (f *Fake) AddProject(p models.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[p.ID] = p
}

// AddTask stores t
func (f *Fake) AddTask(t models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = t
}

// AddNoteFor stores a note on its task
func (f *Fake) AddNoteFor(n models.TaskNote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[n.TaskID] = append(f.notes[n.TaskID], n)
}

// AddUser stores u
func (f *Fake) AddUser(u models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, u)
}

// AddAccount makes email able to log in, answering with resp
func (f *Fake) AddAccount(email string, resp api.AuthResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = resp
}

// StoredTask returns the current copy of a task
func (f *Fake) StoredTask(id string) (models.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	return t, ok
}

// StoredProject returns the current copy of a project
func (f *Fake) StoredProject(id string) (models.Project, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	return p, ok
}

// StoredNotes returns the notes of a task
func (f *Fake) StoredNotes(taskID string) []models.TaskNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.notes[taskID])
}

// SetActive records userID's active project on the fake server
func (f *Fake) SetActive(userID, projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[userID] = projectID
}

// Active returns userID's active project on the fake server
func (f *Fake) Active(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[userID]
}

func notFound(method, path string) error {
	return &api.StatusError{Method: method, Path: path, Status: 404, Message: "not found"}
}

func (f *Fake) Login(_ context.Context, req api.LoginRequest) (*api.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Login", req.Email); err != nil {
		return nil, err
	}
	resp, ok := f.accounts[req.Email]
	if !ok {
		return nil, fmt.Errorf("%w: bad email or password", api.ErrInvalidCredentials)
	}
	return &resp, nil
}

func (f *Fake) Register(_ context.Context, req api.RegisterRequest) (*api.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Register", req.Email); err != nil {
		return nil, err
	}
	resp := api.AuthResponse{
		Token:  "token-" + req.Email,
		Email:  req.Email,
		Name:   req.Name,
		UserID: uuid.NewString(),
		Role:   string(models.RoleDeveloper),
	}
	f.accounts[req.Email] = resp
	return &resp, nil
}

func (f *Fake) ProjectsByStatus(_ context.Context, status models.ProjectStatus) ([]models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ProjectsByStatus", string(status)); err != nil {
		return nil, err
	}
	var out []models.Project
	for _, p := range f.projects {
		if p.Status == status {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.Project) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (f *Fake) Project(_ context.Context, id string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Project", id); err != nil {
		return nil, err
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, notFound("GET", "/projects/"+id)
	}
	return &p, nil
}

func (f *Fake) CreateProject(_ context.Context, req api.ProjectRequest) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateProject", req.Name); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = models.ProjectActive
	}
	p := models.Project{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Description:       req.Description,
		Status:            status,
		CreationTimestamp: models.NewTimestamp(f.Now()),
	}
	f.projects[p.ID] = p
	return &p, nil
}

func (f *Fake) UpdateProject(_ context.Context, id string, req api.ProjectRequest) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateProject", id, req.Name); err != nil {
		return nil, err
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, notFound("PUT", "/projects/"+id)
	}
	p.Name, p.Description = req.Name, req.Description
	if req.Status != "" {
		p.Status = req.Status
	}
	f.projects[id] = p
	return &p, nil
}

func (f *Fake) DeleteProject(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteProject", id); err != nil {
		return err
	}
	delete(f.projects, id)
	return nil
}

func (f *Fake) AssignMember(_ context.Context, projectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AssignMember", projectID, userID); err != nil {
		return err
	}
	p, ok := f.projects[projectID]
	if !ok {
		return notFound("POST", "/projects/"+projectID)
	}
	if p.HasMember(userID) {
		return nil
	}
	m := models.AssignedUser{ID: userID, AssignmentTimestamp: models.NewTimestamp(f.Now())}
	for _, u := range f.users {
		if u.ID == userID {
			m.Name, m.Email, m.Role = u.Name, u.Email, u.Role.Name
		}
	}
	p.AssignedUsers = append(p.AssignedUsers, m)
	f.projects[projectID] = p
	return nil
}

func (f *Fake) RemoveMember(_ context.Context, projectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RemoveMember", projectID, userID); err != nil {
		return err
	}
	p, ok := f.projects[projectID]
	if !ok {
		return notFound("DELETE", "/projects/"+projectID)
	}
	p.AssignedUsers = slices.DeleteFunc(slices.Clone(p.AssignedUsers), func(u models.AssignedUser) bool {
		return u.ID == userID
	})
	f.projects[projectID] = p
	return nil
}

func (f *Fake) SetProjectStatus(_ context.Context, projectID string, status models.ProjectStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetProjectStatus", projectID, string(status)); err != nil {
		return err
	}
	p, ok := f.projects[projectID]
	if !ok {
		return notFound("PUT", "/projects/"+projectID)
	}
	p.Status = status
	f.projects[projectID] = p
	return nil
}

func (f *Fake) ProjectTasks(_ context.Context, projectID string) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ProjectTasks", projectID); err != nil {
		return nil, err
	}
	var out []models.Task
	for _, t := range f.tasks {
		if t.Project.ID == projectID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b models.Task) int {
		if c := a.CreationTimestamp.Compare(b.CreationTimestamp.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (f *Fake) AssignedTasks(_ context.Context, userID string) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AssignedTasks", userID); err != nil {
		return nil, err
	}
	var out []models.Task
	for _, t := range f.tasks {
		if t.AssignedTo(userID) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b models.Task) int {
		if c := a.CreationTimestamp.Compare(b.CreationTimestamp.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (f *Fake) Task(_ context.Context, id string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Task", id); err != nil {
		return nil, err
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, notFound("GET", "/tasks/"+id)
	}
	return &t, nil
}

func (f *Fake) CreateTask(_ context.Context, req api.TaskRequest) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateTask", req.Name); err != nil {
		return nil, err
	}
	t := models.Task{
		ID:                  uuid.NewString(),
		Name:                req.Name,
		Description:         req.Description,
		Priority:            req.Priority,
		State:               lifecycle.Initial,
		Project:             models.ProjectRef{ID: req.ProjectID},
		EstimatedTime:       req.EstimatedTime,
		CreationTimestamp:   models.NewTimestamp(f.Now()),
		AssignmentTimestamp: req.AssignmentTimestamp,
	}
	if req.AssignedUserID != "" {
		t.AssignedUser = &models.UserRef{ID: req.AssignedUserID}
	}
	f.tasks[t.ID] = t
	return &t, nil
}

func (f *Fake) UpdateTask(_ context.Context, id string, req api.TaskUpdateRequest) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateTask", id, req.Name); err != nil {
		return nil, err
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, notFound("PUT", "/tasks/"+id)
	}
	t.Name, t.Description, t.Priority, t.EstimatedTime = req.Name, req.Description, req.Priority, req.EstimatedTime
	if req.AssignedUserID != "" {
		t.AssignedUser = &models.UserRef{ID: req.AssignedUserID}
	}
	f.tasks[id] = t
	return &t, nil
}

func (f *Fake) DeleteTask(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteTask", id); err != nil {
		return err
	}
	if _, ok := f.tasks[id]; !ok {
		return notFound("DELETE", "/tasks/"+id)
	}
	delete(f.tasks, id)
	return nil
}

func (f *Fake) AssignTask(_ context.Context, taskID, userID string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AssignTask", taskID, userID); err != nil {
		return nil, err
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, notFound("PUT", "/tasks/"+taskID)
	}
	ref := &models.UserRef{ID: userID}
	for _, u := range f.users {
		if u.ID == userID {
			ref.Name, ref.Email = u.Name, u.Email
		}
	}
	t.AssignedUser = ref
	f.tasks[taskID] = t
	return &t, nil
}

// Transition applies action with the same state machine the client uses
func (f *Fake) Transition(_ context.Context, taskID string, action lifecycle.Action) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Transition", taskID, string(action)); err != nil {
		return nil, err
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, notFound("PUT", "/tasks/"+taskID)
	}
	next, err := lifecycle.Apply(t, action, f.Now())
	if err != nil {
		return nil, &api.StatusError{Method: "PUT", Path: "/tasks/" + taskID, Status: 400, Message: err.Error()}
	}
	f.tasks[taskID] = next
	return &next, nil
}

func (f *Fake) MarkNotesRead(_ context.Context, taskID string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("MarkNotesRead", taskID); err != nil {
		return nil, err
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, notFound("PUT", "/tasks/"+taskID)
	}
	t.HasUnreadNotes = false
	f.tasks[taskID] = t
	return &t, nil
}

func (f *Fake) Notes(_ context.Context, taskID string) ([]models.TaskNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Notes", taskID); err != nil {
		return nil, err
	}
	return slices.Clone(f.notes[taskID]), nil
}

func (f *Fake) AddNote(_ context.Context, taskID string, req api.NoteRequest) (*models.TaskNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddNote", taskID); err != nil {
		return nil, err
	}
	if _, ok := f.tasks[taskID]; !ok {
		return nil, notFound("POST", "/tasks/"+taskID+"/notes")
	}
	n := models.TaskNote{
		ID:                uuid.NewString(),
		TaskID:            taskID,
		NoteText:          req.NoteText,
		IsAdminNote:       req.IsAdminNote,
		CreationTimestamp: models.NewTimestamp(f.Now()),
	}
	f.notes[taskID] = append(f.notes[taskID], n)
	return &n, nil
}

func (f *Fake) Users(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Users"); err != nil {
		return nil, err
	}
	return slices.Clone(f.users), nil
}

func (f *Fake) SoftDeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SoftDeleteUser", id); err != nil {
		return err
	}
	for i, u := range f.users {
		if u.ID == id {
			f.users[i].Hidden = true
			return nil
		}
	}
	return notFound("PATCH", "/users/"+id)
}

func (f *Fake) ActiveProject(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ActiveProject", userID); err != nil {
		return "", err
	}
	return f.active[userID], nil
}

func (f *Fake) SetActiveProject(_ context.Context, userID, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetActiveProject", userID, projectID); err != nil {
		return err
	}
	f.active[userID] = projectID
	return nil
}
