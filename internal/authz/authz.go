package authz

import (
	"github.com/gravitational/trace"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mkaur-dev/school-backend/internal/models"
)

type Action string

const (
	ActionCreateClass       Action = "create_class"
	ActionUpdateClass       Action = "update_class"
	ActionDeleteClass       Action = "delete_class"
	ActionEnrollSelf        Action = "enroll_self"
	ActionEnrollOther       Action = "enroll_other"
	ActionUnenroll          Action = "unenroll"
	ActionViewClass         Action = "view_class"
	ActionViewStudentRecord Action = "view_student_record"
	ActionManageUsers       Action = "manage_users"
)

// Reason says why a request was denied.
type Reason string

const (
	ReasonRoleNotPermitted Reason = "role_not_permitted"
	ReasonNotOwner         Reason = "not_owner"
	ReasonNotSelf          Reason = "not_self"
)

// Target names what an action operates on. Fields are zero when the action
// has no target of that kind.
type Target struct {
	ClassID   primitive.ObjectID
	StudentID primitive.ObjectID
}

type Decision struct {
	Allowed bool
	Reason  Reason
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(r Reason) Decision { return Decision{Reason: r} }

// Err converts a denial into an access-denied error carrying the reason.
// Allowed decisions convert to nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return trace.AccessDenied("forbidden: %s", d.Reason)
}

// View is the read-only registry surface the engine consults for ownership
// and membership checks.
type View interface {
	// ClassOwner returns the owning teacher's id, or NotFound.
	ClassOwner(classID primitive.ObjectID) (primitive.ObjectID, error)
	// ClassVisible reports whether the class is listed (not archived), or NotFound.
	ClassVisible(classID primitive.ObjectID) (bool, error)
	// IsEnrolled reports whether the student is enrolled in the class.
	IsEnrolled(classID, studentID primitive.ObjectID) bool
	// TeachesStudent reports whether the student is enrolled in any class the
	// teacher owns.
	TeachesStudent(teacherID, studentID primitive.ObjectID) bool
}

// Engine is the complete role/action policy in one place: a switch over the
// action with ownership, membership and self predicates per role. There are
// no per-user overrides; the role fixes what is reachable.
type Engine struct {
	view View
}

func NewEngine(view View) *Engine {
	return &Engine{view: view}
}

// Authorize decides whether the principal may perform the action on the
// target. A non-nil error means the decision could not be made (unknown
// target, registry lookup failure) and is distinct from a deny.
func (e *Engine) Authorize(p models.Principal, action Action, t Target) (Decision, error) {
	// Admins may perform every action in the table.
	if p.Role == models.RoleAdmin {
		return Allow(), nil
	}

	switch action {
	case ActionCreateClass:
		if p.Role == models.RoleTeacher {
			return Allow(), nil
		}
		return Deny(ReasonRoleNotPermitted), nil

	case ActionUpdateClass, ActionDeleteClass:
		if p.Role != models.RoleTeacher {
			return Deny(ReasonRoleNotPermitted), nil
		}
		return e.requireOwner(p, t.ClassID)

	case ActionEnrollSelf:
		if p.Role != models.RoleStudent {
			return Deny(ReasonRoleNotPermitted), nil
		}
		if t.StudentID != p.UserID {
			return Deny(ReasonNotSelf), nil
		}
		return Allow(), nil

	case ActionEnrollOther:
		if p.Role != models.RoleTeacher {
			return Deny(ReasonRoleNotPermitted), nil
		}
		return e.requireOwner(p, t.ClassID)

	case ActionUnenroll:
		switch p.Role {
		case models.RoleTeacher:
			return e.requireOwner(p, t.ClassID)
		case models.RoleStudent:
			if t.StudentID != p.UserID {
				return Deny(ReasonNotSelf), nil
			}
			return Allow(), nil
		}
		return Deny(ReasonRoleNotPermitted), nil

	case ActionViewClass:
		switch p.Role {
		case models.RoleTeacher:
			owner, err := e.view.ClassOwner(t.ClassID)
			if err != nil {
				return Decision{}, trace.Wrap(err)
			}
			if owner == p.UserID {
				return Allow(), nil
			}
			visible, err := e.view.ClassVisible(t.ClassID)
			if err != nil {
				return Decision{}, trace.Wrap(err)
			}
			if visible {
				return Allow(), nil
			}
			return Deny(ReasonNotOwner), nil
		case models.RoleStudent:
			if _, err := e.view.ClassOwner(t.ClassID); err != nil {
				return Decision{}, trace.Wrap(err)
			}
			if e.view.IsEnrolled(t.ClassID, p.UserID) {
				return Allow(), nil
			}
			return Deny(ReasonNotOwner), nil
		}
		return Deny(ReasonRoleNotPermitted), nil

	case ActionViewStudentRecord:
		switch p.Role {
		case models.RoleTeacher:
			if e.view.TeachesStudent(p.UserID, t.StudentID) {
				return Allow(), nil
			}
			return Deny(ReasonNotOwner), nil
		case models.RoleStudent:
			if t.StudentID != p.UserID {
				return Deny(ReasonNotSelf), nil
			}
			return Allow(), nil
		}
		return Deny(ReasonRoleNotPermitted), nil

	case ActionManageUsers:
		return Deny(ReasonRoleNotPermitted), nil
	}

	return Decision{}, trace.BadParameter("unknown action %q", action)
}

func (e *Engine) requireOwner(p models.Principal, classID primitive.ObjectID) (Decision, error) {
	owner, err := e.view.ClassOwner(classID)
	if err != nil {
		return Decision{}, trace.Wrap(err)
	}
	if owner != p.UserID {
		return Deny(ReasonNotOwner), nil
	}
	return Allow(), nil
}
