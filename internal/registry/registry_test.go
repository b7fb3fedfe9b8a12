package registry

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mkaur-dev/school-backend/internal/models"
)

// memStore satisfies store.ClassStore and can be told to fail, for testing
// that a failed write-through leaves the registry unchanged.
type memStore struct {
	mu   sync.Mutex
	fail error
}

func (s *memStore) setFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *memStore) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

func (s *memStore) Load(context.Context) ([]models.Class, []models.Enrollment, error) {
	return nil, nil, s.check()
}
func (s *memStore) InsertClass(context.Context, models.Class) error { return s.check() }
func (s *memStore) UpdateClass(context.Context, models.Class) error { return s.check() }
func (s *memStore) DeleteClass(context.Context, primitive.ObjectID, bool) error {
	return s.check()
}
func (s *memStore) InsertEnrollment(context.Context, models.Enrollment) error { return s.check() }
func (s *memStore) RemoveEnrollment(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return s.check()
}

type fakeUsers struct {
	users map[primitive.ObjectID]*models.User
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, trace.NotFound("user %s not found", id.Hex())
	}
	return user, nil
}

func (f *fakeUsers) add(role models.Role) primitive.ObjectID {
	id := primitive.NewObjectID()
	f.users[id] = &models.User{ID: id, Role: role}
	return id
}

func newTestRegistry(t *testing.T) (*Registry, *memStore, *fakeUsers) {
	t.Helper()
	classStore := &memStore{}
	users := &fakeUsers{users: make(map[primitive.ObjectID]*models.User)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg, err := New(context.Background(), classStore, users, log)
	require.NoError(t, err)
	return reg, classStore, users
}

func TestCreateClassValidation(t *testing.T) {
	reg, _, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)
	studentID := users.add(models.RoleStudent)

	_, err := reg.CreateClass(ctx, teacherID, "Algebra", 0)
	require.True(t, trace.IsBadParameter(err))

	_, err = reg.CreateClass(ctx, teacherID, "Algebra", -3)
	require.True(t, trace.IsBadParameter(err))

	// Only teachers own classes.
	_, err = reg.CreateClass(ctx, studentID, "Algebra", 10)
	require.True(t, trace.IsBadParameter(err))

	_, err = reg.CreateClass(ctx, primitive.NewObjectID(), "Algebra", 10)
	require.True(t, trace.IsBadParameter(err))

	class, err := reg.CreateClass(ctx, teacherID, "Algebra", 10)
	require.NoError(t, err)
	require.Equal(t, teacherID, class.OwnerID)
	require.Equal(t, 10, class.Capacity)
}

func TestEnrollToCapacity(t *testing.T) {
	reg, _, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)
	s1 := users.add(models.RoleStudent)
	s2 := users.add(models.RoleStudent)
	s3 := users.add(models.RoleStudent)

	class, err := reg.CreateClass(ctx, teacherID, "Algebra", 2)
	require.NoError(t, err)

	summary, err := reg.GetClass(class.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOpen, summary.Status)
	require.Equal(t, 0, summary.Enrolled)

	_, err = reg.Enroll(ctx, class.ID, s1)
	require.NoError(t, err)
	_, err = reg.Enroll(ctx, class.ID, s2)
	require.NoError(t, err)

	summary, err = reg.GetClass(class.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFull, summary.Status)

	_, err = reg.Enroll(ctx, class.ID, s3)
	require.True(t, trace.IsLimitExceeded(err))
}

func TestEnrollDuplicate(t *testing.T) {
	reg, _, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)
	s1 := users.add(models.RoleStudent)

	class, err := reg.CreateClass(ctx, teacherID, "Algebra", 5)
	require.NoError(t, err)

	_, err = reg.Enroll(ctx, class.ID, s1)
	require.NoError(t, err)

	_, err = reg.Enroll(ctx, class.ID, s1)
	require.True(t, trace.IsAlreadyExists(err))

	summary, err := reg.GetClass(class.ID)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Enrolled)
}

func TestEnrollValidation(t *testing.T) {
	reg, _, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)

	class, err := reg.CreateClass(ctx, teacherID, "Algebra", 5)
	require.NoError(t, err)

	// Unknown student id
	_, err = reg.Enroll(ctx, class.ID, primitive.NewObjectID())
	require.True(t, trace.IsBadParameter(err))

	// A teacher cannot be enrolled as a student.
	_, err = reg.Enroll(ctx, class.ID, teacherID)
	require.True(t, trace.IsBadParameter(err))

	// Unknown class
	s1 := users.add(models.RoleStudent)
	_, err = reg.Enroll(ctx, primitive.NewObjectID(), s1)
	require.True(t, trace.IsNotFound(err))
}

func TestUnenrollRoundTrip(t *testing.T) {
	reg, _, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)
	s1 := users.add(models.RoleStudent)

	class, err := reg.CreateClass(ctx, teacherID, "Algebra", 5)
	require.NoError(t, err)

	_, err = reg.Enroll(ctx, class.ID, s1)
	require.NoError(t, err)
	require.True(t, reg.IsEnrolled(class.ID, s1))

	require.NoError(t, reg.Unenroll(ctx, class.ID, s1))
	require.False(t, reg.IsEnrolled(class.ID, s1))

	summary, err := reg.GetClass(class.ID)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Enrolled)

	// Removing an absent pair succeeds with no side effect, repeatedly.
	require.NoError(t, reg.Unenroll(ctx, class.ID, s1))
	require.NoError(t, reg.Unenroll(ctx, class.ID, s1))
	require.NoError(t, reg.Unenroll(ctx, primitive.NewObjectID(), s1))
}

// Two enrollments racing for the last seats must never push the class past
// capacity.
func TestConcurrentEnrollRespectsCapacity(t *testing.T) {
	reg, _, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)

	const capacity = 5
	const contenders = 20

	class, err := reg.CreateClass(ctx, teacherID, "Algebra", capacity)
	require.NoError(t, err)

	students := make([]primitive.ObjectID, contenders)
	for i := range students {
		students[i] = users.add(models.RoleStudent)
	}

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for _, studentID := range students {
		wg.Add(1)
		go func(id primitive.ObjectID) {
			defer wg.Done()
			_, err := reg.Enroll(ctx, class.ID, id)
			results <- err
		}(studentID)
	}
	wg.Wait()
	close(results)

	var succeeded, full int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case trace.IsLimitExceeded(err):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, capacity, succeeded)
	require.Equal(t, contenders-capacity, full)

	summary, err := reg.GetClass(class.ID)
	require.NoError(t, err)
	require.Equal(t, capacity, summary.Enrolled)
}

func TestDeleteClass(t *testing.T) {
	reg, _, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)
	s1 := users.add(models.RoleStudent)
	s2 := users.add(models.RoleStudent)

	class, err := reg.CreateClass(ctx, teacherID, "Algebra", 5)
	require.NoError(t, err)
	_, err = reg.Enroll(ctx, class.ID, s1)
	require.NoError(t, err)
	_, err = reg.Enroll(ctx, class.ID, s2)
	require.NoError(t, err)

	// Non-empty class without the cascade override
	err = reg.DeleteClass(ctx, class.ID, false)
	require.True(t, trace.IsCompareFailed(err))

	// Cascade removes the class and all its enrollments in one step.
	require.NoError(t, reg.DeleteClass(ctx, class.ID, true))

	_, err = reg.GetClass(class.ID)
	require.True(t, trace.IsNotFound(err))
	require.Empty(t, reg.StudentEnrollments(s1))
	require.Empty(t, reg.StudentEnrollments(s2))
}

func TestDeleteEmptyClass(t *testing.T) {
	reg, _, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)

	class, err := reg.CreateClass(ctx, teacherID, "Algebra", 5)
	require.NoError(t, err)

	require.NoError(t, reg.DeleteClass(ctx, class.ID, false))
	_, err = reg.GetClass(class.ID)
	require.True(t, trace.IsNotFound(err))

	err = reg.DeleteClass(ctx, class.ID, false)
	require.True(t, trace.IsNotFound(err))
}

func TestUpdateCapacity(t *testing.T) {
	reg, _, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)
	s1 := users.add(models.RoleStudent)
	s2 := users.add(models.RoleStudent)

	class, err := reg.CreateClass(ctx, teacherID, "Algebra", 5)
	require.NoError(t, err)
	_, err = reg.Enroll(ctx, class.ID, s1)
	require.NoError(t, err)
	_, err = reg.Enroll(ctx, class.ID, s2)
	require.NoError(t, err)

	// Shrinking below the enrolled count is rejected.
	err = reg.UpdateCapacity(ctx, class.ID, 1)
	require.True(t, trace.IsLimitExceeded(err))

	require.NoError(t, reg.UpdateCapacity(ctx, class.ID, 2))
	summary, err := reg.GetClass(class.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFull, summary.Status)

	err = reg.UpdateCapacity(ctx, class.ID, 0)
	require.True(t, trace.IsBadParameter(err))
}

// A store failure must leave the in-memory state untouched, and surface as a
// retryable connection problem rather than a business failure.
func TestStoreFailureLeavesStateUnchanged(t *testing.T) {
	reg, classStore, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)
	s1 := users.add(models.RoleStudent)
	s2 := users.add(models.RoleStudent)

	class, err := reg.CreateClass(ctx, teacherID, "Algebra", 5)
	require.NoError(t, err)
	_, err = reg.Enroll(ctx, class.ID, s1)
	require.NoError(t, err)

	classStore.setFailure(trace.ConnectionProblem(nil, "store unavailable"))

	_, err = reg.Enroll(ctx, class.ID, s2)
	require.True(t, trace.IsConnectionProblem(err))

	err = reg.Unenroll(ctx, class.ID, s1)
	require.True(t, trace.IsConnectionProblem(err))

	err = reg.DeleteClass(ctx, class.ID, true)
	require.True(t, trace.IsConnectionProblem(err))

	// Nothing changed: s1 still enrolled, s2 still out, class still there.
	classStore.setFailure(nil)
	summary, err := reg.GetClass(class.ID)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Enrolled)
	require.True(t, reg.IsEnrolled(class.ID, s1))
	require.False(t, reg.IsEnrolled(class.ID, s2))
}

func TestListClassesSkipsArchived(t *testing.T) {
	reg, _, users := newTestRegistry(t)
	ctx := context.Background()
	teacherID := users.add(models.RoleTeacher)

	algebra, err := reg.CreateClass(ctx, teacherID, "Algebra", 5)
	require.NoError(t, err)
	_, err = reg.CreateClass(ctx, teacherID, "Biology", 5)
	require.NoError(t, err)

	require.NoError(t, reg.SetArchived(ctx, algebra.ID, true))

	listed := reg.ListClasses(false)
	require.Len(t, listed, 1)
	require.Equal(t, "Biology", listed[0].Class.Name)

	all := reg.ListClasses(true)
	require.Len(t, all, 2)

	visible, err := reg.ClassVisible(algebra.ID)
	require.NoError(t, err)
	require.False(t, visible)
}
