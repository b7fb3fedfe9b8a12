package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gravitational/trace"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mkaur-dev/school-backend/internal/models"
	"github.com/mkaur-dev/school-backend/internal/store"
)

// UserResolver is the slice of the identity store the registry needs to
// validate owner and student references.
type UserResolver interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// classEntry is one class plus its enrollment set. entry.mu serializes every
// mutation of the class, which makes the capacity check-and-insert in Enroll
// atomic. Lock ordering: entry.mu may be taken while r.mu is NOT held, and
// r.mu may be taken while holding entry.mu, never the other way around. No
// operation touches two classes, so no operation holds two entry locks.
type classEntry struct {
	mu       sync.Mutex
	deleted  bool
	class    models.Class
	enrolled map[primitive.ObjectID]models.Enrollment
}

// Registry is the authoritative in-memory view of classes and enrollments.
// Every mutation is written through to the class store first and applied in
// memory only on success, so a store failure leaves both sides unchanged.
type Registry struct {
	mu      sync.RWMutex
	classes map[primitive.ObjectID]*classEntry

	users UserResolver
	store store.ClassStore
	log   *slog.Logger
}

// New loads the persisted classes and enrollments and builds the registry.
func New(ctx context.Context, classStore store.ClassStore, users UserResolver, log *slog.Logger) (*Registry, error) {
	classes, enrollments, err := classStore.Load(ctx)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	r := &Registry{
		classes: make(map[primitive.ObjectID]*classEntry, len(classes)),
		users:   users,
		store:   classStore,
		log:     log,
	}
	for _, c := range classes {
		r.classes[c.ID] = &classEntry{
			class:    c,
			enrolled: make(map[primitive.ObjectID]models.Enrollment),
		}
	}
	for _, e := range enrollments {
		entry, ok := r.classes[e.ClassID]
		if !ok {
			log.Warn("dropping enrollment for unknown class", "class_id", e.ClassID.Hex())
			continue
		}
		entry.enrolled[e.StudentID] = e
	}
	log.Info("registry loaded", "classes", len(classes), "enrollments", len(enrollments))
	return r, nil
}

// entry fetches a class entry without holding the registry lock afterwards.
func (r *Registry) entry(classID primitive.ObjectID) *classEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classes[classID]
}

// CreateClass registers a new class. The owner must resolve to a teacher and
// the capacity must be positive.
func (r *Registry) CreateClass(ctx context.Context, ownerID primitive.ObjectID, name string, capacity int) (models.Class, error) {
	if capacity <= 0 {
		return models.Class{}, trace.BadParameter("capacity must be positive")
	}
	if name == "" {
		return models.Class{}, trace.BadParameter("class name is required")
	}

	owner, err := r.users.FindByID(ctx, ownerID)
	if err != nil {
		if trace.IsNotFound(err) {
			return models.Class{}, trace.BadParameter("owner is not a teacher")
		}
		return models.Class{}, trace.Wrap(err)
	}
	if owner.Role != models.RoleTeacher {
		return models.Class{}, trace.BadParameter("owner is not a teacher")
	}

	now := time.Now()
	class := models.Class{
		ID:        primitive.NewObjectID(),
		Name:      name,
		OwnerID:   ownerID,
		Capacity:  capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.InsertClass(ctx, class); err != nil {
		return models.Class{}, trace.Wrap(err)
	}

	r.mu.Lock()
	r.classes[class.ID] = &classEntry{
		class:    class,
		enrolled: make(map[primitive.ObjectID]models.Enrollment),
	}
	r.mu.Unlock()

	r.log.Info("class created", "class_id", class.ID.Hex(), "owner_id", ownerID.Hex(), "capacity", capacity)
	return class, nil
}

// Enroll adds the student to the class. The capacity check and the insert
// happen under the class lock, so two racing enrollments against the last
// seat cannot both succeed.
func (r *Registry) Enroll(ctx context.Context, classID, studentID primitive.ObjectID) (models.Enrollment, error) {
	// Resolve the student before taking the class lock; the identity store
	// is an external call and must not run under it.
	student, err := r.users.FindByID(ctx, studentID)
	if err != nil {
		if trace.IsNotFound(err) {
			return models.Enrollment{}, trace.BadParameter("student does not exist")
		}
		return models.Enrollment{}, trace.Wrap(err)
	}
	if student.Role != models.RoleStudent {
		return models.Enrollment{}, trace.BadParameter("user %s is not a student", studentID.Hex())
	}

	entry := r.entry(classID)
	if entry == nil {
		return models.Enrollment{}, trace.NotFound("class %s not found", classID.Hex())
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return models.Enrollment{}, trace.NotFound("class %s not found", classID.Hex())
	}
	if _, ok := entry.enrolled[studentID]; ok {
		return models.Enrollment{}, trace.AlreadyExists("student already enrolled in this class")
	}
	if len(entry.enrolled) >= entry.class.Capacity {
		return models.Enrollment{}, trace.LimitExceeded("class is full")
	}

	enrollment := models.Enrollment{
		StudentID:  studentID,
		ClassID:    classID,
		EnrolledAt: time.Now(),
	}
	if err := r.store.InsertEnrollment(ctx, enrollment); err != nil {
		return models.Enrollment{}, trace.Wrap(err)
	}
	entry.enrolled[studentID] = enrollment

	r.log.Info("student enrolled", "class_id", classID.Hex(), "student_id", studentID.Hex(),
		"enrolled", len(entry.enrolled), "capacity", entry.class.Capacity)
	return enrollment, nil
}

// Unenroll removes the (student, class) pair. Removing an absent pair is a
// no-op success, so repeated calls are idempotent.
func (r *Registry) Unenroll(ctx context.Context, classID, studentID primitive.ObjectID) error {
	entry := r.entry(classID)
	if entry == nil {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil
	}
	if _, ok := entry.enrolled[studentID]; !ok {
		return nil
	}
	if err := r.store.RemoveEnrollment(ctx, classID, studentID); err != nil {
		return trace.Wrap(err)
	}
	delete(entry.enrolled, studentID)

	r.log.Info("student unenrolled", "class_id", classID.Hex(), "student_id", studentID.Hex())
	return nil
}

// DeleteClass removes an empty class. With cascade set (admin override) it
// removes the class together with all its enrollments in one step; a store
// failure leaves everything in place.
func (r *Registry) DeleteClass(ctx context.Context, classID primitive.ObjectID, cascade bool) error {
	entry := r.entry(classID)
	if entry == nil {
		return trace.NotFound("class %s not found", classID.Hex())
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return trace.NotFound("class %s not found", classID.Hex())
	}
	if len(entry.enrolled) > 0 && !cascade {
		return trace.CompareFailed("class still has %d enrolled students", len(entry.enrolled))
	}
	if err := r.store.DeleteClass(ctx, classID, cascade); err != nil {
		return trace.Wrap(err)
	}

	entry.deleted = true
	entry.enrolled = make(map[primitive.ObjectID]models.Enrollment)

	r.mu.Lock()
	delete(r.classes, classID)
	r.mu.Unlock()

	r.log.Info("class deleted", "class_id", classID.Hex(), "cascade", cascade)
	return nil
}

// UpdateCapacity changes the class capacity. Shrinking below the current
// enrolled count is rejected.
func (r *Registry) UpdateCapacity(ctx context.Context, classID primitive.ObjectID, capacity int) error {
	if capacity <= 0 {
		return trace.BadParameter("capacity must be positive")
	}

	entry := r.entry(classID)
	if entry == nil {
		return trace.NotFound("class %s not found", classID.Hex())
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return trace.NotFound("class %s not found", classID.Hex())
	}
	if capacity < len(entry.enrolled) {
		return trace.LimitExceeded("capacity %d is below the current enrollment of %d", capacity, len(entry.enrolled))
	}

	updated := entry.class
	updated.Capacity = capacity
	updated.UpdatedAt = time.Now()
	if err := r.store.UpdateClass(ctx, updated); err != nil {
		return trace.Wrap(err)
	}
	entry.class = updated
	return nil
}

// Rename changes the class name.
func (r *Registry) Rename(ctx context.Context, classID primitive.ObjectID, name string) error {
	if name == "" {
		return trace.BadParameter("class name is required")
	}
	return r.updateClass(ctx, classID, func(c *models.Class) { c.Name = name })
}

// SetArchived flips the class's listing visibility.
func (r *Registry) SetArchived(ctx context.Context, classID primitive.ObjectID, archived bool) error {
	return r.updateClass(ctx, classID, func(c *models.Class) { c.Archived = archived })
}

func (r *Registry) updateClass(ctx context.Context, classID primitive.ObjectID, apply func(*models.Class)) error {
	entry := r.entry(classID)
	if entry == nil {
		return trace.NotFound("class %s not found", classID.Hex())
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return trace.NotFound("class %s not found", classID.Hex())
	}

	updated := entry.class
	apply(&updated)
	updated.UpdatedAt = time.Now()
	if err := r.store.UpdateClass(ctx, updated); err != nil {
		return trace.Wrap(err)
	}
	entry.class = updated
	return nil
}
