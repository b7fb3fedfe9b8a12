package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mkaur-dev/school-backend/internal/models"
)

type fakeUserStore struct {
	byUsername map[string]*models.User
	failure    error
}

func (f *fakeUserStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	user, ok := f.byUsername[username]
	if !ok {
		return nil, trace.NotFound("user %q not found", username)
	}
	return user, nil
}

func (f *fakeUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	for _, user := range f.byUsername {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, trace.NotFound("user %s not found", id.Hex())
}

func (f *fakeUserStore) FindByVerificationToken(context.Context, string) (*models.User, error) {
	return nil, trace.NotFound("not found")
}

func (f *fakeUserStore) Save(context.Context, *models.User) error { return nil }

func (f *fakeUserStore) List(context.Context) ([]models.User, error) { return nil, nil }

func newTestAuthenticator(t *testing.T) (*Authenticator, *fakeUserStore, models.User) {
	t.Helper()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     "s.kaur",
		PasswordHash: hash,
		Role:         models.RoleStudent,
		IsVerified:   true,
	}
	users := &fakeUserStore{byUsername: map[string]*models.User{user.Username: &user}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthenticator(users, BcryptVerifier{}, log), users, user
}

func TestAuthenticateSuccess(t *testing.T) {
	authn, _, user := newTestAuthenticator(t)

	principal, err := authn.Authenticate(context.Background(), "s.kaur", "correct horse")
	require.NoError(t, err)
	require.Equal(t, user.ID, principal.UserID)
	require.Equal(t, models.RoleStudent, principal.Role)
}

// Unknown usernames and wrong passwords must be indistinguishable at the
// boundary so accounts cannot be enumerated.
func TestAuthenticateUniformFailure(t *testing.T) {
	authn, _, _ := newTestAuthenticator(t)
	ctx := context.Background()

	_, unknownErr := authn.Authenticate(ctx, "nobody", "whatever")
	require.True(t, trace.IsAccessDenied(unknownErr))

	_, badPassErr := authn.Authenticate(ctx, "s.kaur", "wrong")
	require.True(t, trace.IsAccessDenied(badPassErr))

	require.Equal(t, trace.UserMessage(unknownErr), trace.UserMessage(badPassErr))
}

func TestAuthenticateUnverified(t *testing.T) {
	authn, users, _ := newTestAuthenticator(t)
	users.byUsername["s.kaur"].IsVerified = false

	_, err := authn.Authenticate(context.Background(), "s.kaur", "correct horse")
	require.True(t, trace.IsAccessDenied(err))
}

// A store outage is not a rejection; it must surface as a retryable failure.
func TestAuthenticateStoreOutage(t *testing.T) {
	authn, users, _ := newTestAuthenticator(t)
	users.failure = trace.ConnectionProblem(nil, "identity store unavailable")

	_, err := authn.Authenticate(context.Background(), "s.kaur", "correct horse")
	require.True(t, trace.IsConnectionProblem(err))
	require.False(t, trace.IsAccessDenied(err))
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"))
	principal := models.Principal{UserID: primitive.NewObjectID(), Role: models.RoleTeacher}

	token, err := issuer.Issue(principal)
	require.NoError(t, err)

	restored, err := issuer.Validate(token)
	require.NoError(t, err)
	require.Equal(t, principal, restored)

	_, err = issuer.Validate("not-a-token")
	require.True(t, trace.IsAccessDenied(err))

	// A token signed with a different secret is rejected.
	other := NewTokenIssuer([]byte("other-secret"))
	foreign, err := other.Issue(principal)
	require.NoError(t, err)
	_, err = issuer.Validate(foreign)
	require.True(t, trace.IsAccessDenied(err))
}
