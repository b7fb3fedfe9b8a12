package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mkaur-dev/school-backend/internal/models"
)

// UserStore is the identity-store capability the core consumes. Lookups
// return a NotFound error when no record matches; any infrastructure error
// is reported as a connection problem so callers can retry.
type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]models.User, error)
}

// ClassStore persists registry mutations. The registry applies a mutation to
// its in-memory state only after the corresponding store call succeeds, so a
// store error must leave the stored state unchanged too. DeleteClass with
// cascade removes the class and all of its enrollments in one atomic step.
type ClassStore interface {
	Load(ctx context.Context) ([]models.Class, []models.Enrollment, error)
	InsertClass(ctx context.Context, class models.Class) error
	UpdateClass(ctx context.Context, class models.Class) error
	DeleteClass(ctx context.Context, classID primitive.ObjectID, cascade bool) error
	InsertEnrollment(ctx context.Context, enrollment models.Enrollment) error
	RemoveEnrollment(ctx context.Context, classID, studentID primitive.ObjectID) error
}
