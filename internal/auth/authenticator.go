package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/gravitational/trace"

	"github.com/mkaur-dev/school-backend/internal/models"
	"github.com/mkaur-dev/school-backend/internal/store"
)

// Authenticator turns verified credentials into a Principal. Unknown-user and
// bad-credential outcomes are indistinguishable to the caller so usernames
// cannot be enumerated; the logs keep the two apart.
type Authenticator struct {
	users    store.UserStore
	verifier CredentialVerifier
	log      *slog.Logger
}

func NewAuthenticator(users store.UserStore, verifier CredentialVerifier, log *slog.Logger) *Authenticator {
	return &Authenticator{users: users, verifier: verifier, log: log}
}

func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (models.Principal, error) {
	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if trace.IsNotFound(err) {
			a.log.Info("authentication failed", "username", username, "reason", "unknown user")
			return models.Principal{}, trace.AccessDenied("invalid username or password")
		}
		// Store outage, not a bad login. Surfaced distinctly so the caller
		// can retry instead of reporting a rejection.
		return models.Principal{}, trace.Wrap(err)
	}

	if !a.verifier.Verify(password, user.PasswordHash) {
		a.log.Info("authentication failed", "username", username, "reason", "bad credential")
		return models.Principal{}, trace.AccessDenied("invalid username or password")
	}

	if !user.IsVerified {
		return models.Principal{}, trace.AccessDenied("email not verified")
	}

	// Best-effort last-login stamp; login still succeeds if it cannot be saved.
	user.LastLoginAt = time.Now()
	if err := a.users.Save(ctx, user); err != nil {
		a.log.Warn("failed to record last login", "username", username, "error", err)
	}

	return models.Principal{UserID: user.ID, Role: user.Role}, nil
}
