package registry

import (
	"sort"

	"github.com/gravitational/trace"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mkaur-dev/school-backend/internal/models"
)

// ClassSummary is a consistent snapshot of one class: the record plus its
// enrolled count, taken under the class lock so a half-applied mutation is
// never visible.
type ClassSummary struct {
	Class    models.Class       `json:"class"`
	Enrolled int                `json:"enrolled"`
	Status   models.ClassStatus `json:"status"`
}

func (r *Registry) snapshot(entry *classEntry) (ClassSummary, bool) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return ClassSummary{}, false
	}
	return ClassSummary{
		Class:    entry.class,
		Enrolled: len(entry.enrolled),
		Status:   entry.class.Status(len(entry.enrolled)),
	}, true
}

// GetClass returns a snapshot of one class.
func (r *Registry) GetClass(classID primitive.ObjectID) (ClassSummary, error) {
	entry := r.entry(classID)
	if entry == nil {
		return ClassSummary{}, trace.NotFound("class %s not found", classID.Hex())
	}
	summary, ok := r.snapshot(entry)
	if !ok {
		return ClassSummary{}, trace.NotFound("class %s not found", classID.Hex())
	}
	return summary, nil
}

func (r *Registry) entries() []*classEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*classEntry, 0, len(r.classes))
	for _, entry := range r.classes {
		entries = append(entries, entry)
	}
	return entries
}

// ListClasses returns snapshots of all classes, skipping archived ones unless
// asked for. Sorted by name for stable listings.
func (r *Registry) ListClasses(includeArchived bool) []ClassSummary {
	var summaries []ClassSummary
	for _, entry := range r.entries() {
		summary, ok := r.snapshot(entry)
		if !ok {
			continue
		}
		if summary.Class.Archived && !includeArchived {
			continue
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Class.Name < summaries[j].Class.Name
	})
	return summaries
}

// ClassEnrollments returns the enrollments of one class.
func (r *Registry) ClassEnrollments(classID primitive.ObjectID) ([]models.Enrollment, error) {
	entry := r.entry(classID)
	if entry == nil {
		return nil, trace.NotFound("class %s not found", classID.Hex())
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, trace.NotFound("class %s not found", classID.Hex())
	}
	enrollments := make([]models.Enrollment, 0, len(entry.enrolled))
	for _, e := range entry.enrolled {
		enrollments = append(enrollments, e)
	}
	sort.Slice(enrollments, func(i, j int) bool {
		return enrollments[i].EnrolledAt.Before(enrollments[j].EnrolledAt)
	})
	return enrollments, nil
}

// StudentEnrollments returns every enrollment of one student across classes.
func (r *Registry) StudentEnrollments(studentID primitive.ObjectID) []models.Enrollment {
	var enrollments []models.Enrollment
	for _, entry := range r.entries() {
		entry.mu.Lock()
		if !entry.deleted {
			if e, ok := entry.enrolled[studentID]; ok {
				enrollments = append(enrollments, e)
			}
		}
		entry.mu.Unlock()
	}
	sort.Slice(enrollments, func(i, j int) bool {
		return enrollments[i].EnrolledAt.Before(enrollments[j].EnrolledAt)
	})
	return enrollments
}

// The methods below implement the read-only view the authorization engine
// consults (authz.View).

func (r *Registry) ClassOwner(classID primitive.ObjectID) (primitive.ObjectID, error) {
	summary, err := r.GetClass(classID)
	if err != nil {
		return primitive.NilObjectID, trace.Wrap(err)
	}
	return summary.Class.OwnerID, nil
}

func (r *Registry) ClassVisible(classID primitive.ObjectID) (bool, error) {
	summary, err := r.GetClass(classID)
	if err != nil {
		return false, trace.Wrap(err)
	}
	return !summary.Class.Archived, nil
}

func (r *Registry) IsEnrolled(classID, studentID primitive.ObjectID) bool {
	entry := r.entry(classID)
	if entry == nil {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return false
	}
	_, ok := entry.enrolled[studentID]
	return ok
}

func (r *Registry) TeachesStudent(teacherID, studentID primitive.ObjectID) bool {
	for _, entry := range r.entries() {
		entry.mu.Lock()
		_, enrolled := entry.enrolled[studentID]
		owns := !entry.deleted && entry.class.OwnerID == teacherID
		entry.mu.Unlock()
		if owns && enrolled {
			return true
		}
	}
	return false
}
