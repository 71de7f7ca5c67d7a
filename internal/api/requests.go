package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tgienger/pmt/internal/models"
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,max=100"`
}

// TaskRequest creates a task
type TaskRequest struct {
	Name                string            `json:"name" validate:"required,max=255"`
	Description         string            `json:"description"`
	Priority            models.Priority   `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH"`
	ProjectID           string            `json:"projectId" validate:"required,uuid"`
	EstimatedTime       *int              `json:"estimatedTime,omitempty" validate:"omitnil,gt=0"`
	AssignedUserID      string            `json:"assignedUserId,omitempty" validate:"omitempty,uuid"`
	AssignmentTimestamp *models.Timestamp `json:"assignmentTimestamp,omitempty"`
}

// TaskUpdateRequest edits a task. State is normally left empty; lifecycle
// changes go through Transition.
type TaskUpdateRequest struct {
	Name           string           `json:"name" validate:"required,max=255"`
	Description    string           `json:"description"`
	Priority       models.Priority  `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH"`
	ProjectID      string           `json:"projectId" validate:"required,uuid"`
	EstimatedTime  *int             `json:"estimatedTime,omitempty" validate:"omitnil,gt=0"`
	State          models.TaskState `json:"state,omitempty"`
	AssignedUserID string           `json:"assignedUserId,omitempty" validate:"omitempty,uuid"`
}

// NoteRequest posts a note on a task
type NoteRequest struct {
	NoteText    string `json:"noteText" validate:"required,max=4000"`
	IsAdminNote bool   `json:"isAdminNote"`
}

type noteUpdateRequest struct {
	NoteText string `json:"noteText" validate:"required,max=4000"`
}

// ProjectRequest creates or updates a project
type ProjectRequest struct {
	Name        string               `json:"name" validate:"required,max=255"`
	Description string               `json:"description"`
	Status      models.ProjectStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE FINISHED"`
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks a request payload. Forms call it before submitting so the
// user sees the problem without a round trip.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeField(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " is not a valid email address"
	case "uuid":
		return fe.Field() + " is not a valid id"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
