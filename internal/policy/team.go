package policy

import "github.com/tgienger/pmt/internal/models"

// IsMember reports whether the role is one that only sees its own work
func IsMember(actor models.Identity) bool {
	return actor.Role == models.RoleDeveloper || actor.Role == models.RoleDevOps
}

// CanManageProjects reports whether the actor may create, edit, delete and
// staff projects
func CanManageProjects(actor models.Identity) bool {
	return actor.Role == models.RoleAdmin
}

// CanCreateTasks reports whether the actor may create and assign tasks
func CanCreateTasks(actor models.Identity) bool {
	return actor.Role == models.RoleAdmin
}

// CanManageUsers reports whether the actor may open user administration
func CanManageUsers(actor models.Identity) bool {
	return actor.Role == models.RoleAdmin
}

// CanSoftDelete reports whether the actor may deactivate target. Admins can
// not be deactivated from the client.
func CanSoftDelete(actor models.Identity, target models.User) bool {
	return actor.Role == models.RoleAdmin && target.RoleName() != models.RoleAdmin && target.ID != actor.ID
}

// VisibleProjects filters projects down to those the actor may see.
// Developers and devops only see projects they are members of.
func VisibleProjects(projects []models.Project, actor models.Identity) []models.Project {
	if !IsMember(actor) {
		return projects
	}
	var out []models.Project
	for _, p := range projects {
		if p.HasMember(actor.ID) {
			out = append(out, p)
		}
	}
	return out
}

// AssignableUsers returns the users that can be put on projects and tasks:
// activated developers and devops
func AssignableUsers(users []models.User) []models.User {
	var out []models.User
	for _, u := range models.ActiveUsers(users) {
		switch u.RoleName() {
		case models.RoleDeveloper, models.RoleDevOps:
			out = append(out, u)
		}
	}
	return out
}
