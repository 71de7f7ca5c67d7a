package api

import "github.com/tgienger/pmt/internal/models"

// taskResponse is the backend's flat task document
type taskResponse struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	Priority            models.Priority   `json:"priority"`
	ProjectID           string            `json:"projectId"`
	ProjectName         string            `json:"projectName"`
	EstimatedTime       *int              `json:"estimatedTime"`
	State               models.TaskState  `json:"state"`
	AssignedUserID      string            `json:"assignedUserId"`
	AssignedUserName    string            `json:"assignedUserName"`
	AssignedUser        *models.UserRef   `json:"assignedUser"`
	CreationTimestamp   models.Timestamp  `json:"creationTimestamp"`
	StartTimestamp      *models.Timestamp `json:"startTimestamp"`
	CompletionTimestamp *models.Timestamp `json:"completionTimestamp"`
	AssignmentTimestamp *models.Timestamp `json:"assignmentTimestamp"`
	HasUnreadNotes      bool              `json:"hasUnreadNotes"`
	NoteCount           int               `json:"noteCount"`
}

func (r taskResponse) task() models.Task {
	t := models.Task{
		ID:                  r.ID,
		Name:                r.Name,
		Description:         r.Description,
		Priority:            r.Priority,
		State:               r.State,
		Project:             models.ProjectRef{ID: r.ProjectID, Name: r.ProjectName},
		EstimatedTime:       r.EstimatedTime,
		CreationTimestamp:   r.CreationTimestamp,
		StartTimestamp:      nonZero(r.StartTimestamp),
		CompletionTimestamp: nonZero(r.CompletionTimestamp),
		AssignmentTimestamp: nonZero(r.AssignmentTimestamp),
		HasUnreadNotes:      r.HasUnreadNotes,
		NoteCount:           r.NoteCount,
	}

	switch {
	case r.AssignedUser != nil && r.AssignedUser.ID != "":
		u := *r.AssignedUser
		t.AssignedUser = &u
	case r.AssignedUserID != "":
		t.AssignedUser = &models.UserRef{ID: r.AssignedUserID, Name: r.AssignedUserName}
	}
	if t.State == "" {
		t.State = models.StateNotStarted
	}
	return t
}

func tasksFrom(rs []taskResponse) []models.Task {
	tasks := make([]models.Task, len(rs))
	for i, r := range rs {
		tasks[i] = r.task()
	}
	return tasks
}

func nonZero(ts *models.Timestamp) *models.Timestamp {
	if ts == nil || ts.IsZero() {
		return nil
	}
	return ts
}
