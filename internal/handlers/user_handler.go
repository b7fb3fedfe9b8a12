package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gravitational/trace"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mkaur-dev/school-backend/internal/auth"
	"github.com/mkaur-dev/school-backend/internal/authz"
	"github.com/mkaur-dev/school-backend/internal/middleware"
	"github.com/mkaur-dev/school-backend/internal/models"
	"github.com/mkaur-dev/school-backend/internal/registry"
	"github.com/mkaur-dev/school-backend/internal/store"
	"github.com/mkaur-dev/school-backend/internal/utils"
)

type UserHandler struct {
	users    store.UserStore
	registry *registry.Registry
	authn    *auth.Authenticator
	engine   *authz.Engine
	tokens   *auth.TokenIssuer
	mailer   *utils.Mailer
	baseURL  string
	log      *slog.Logger
}

func NewUserHandler(users store.UserStore, reg *registry.Registry, authn *auth.Authenticator,
	engine *authz.Engine, tokens *auth.TokenIssuer, mailer *utils.Mailer, baseURL string, log *slog.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		registry: reg,
		authn:    authn,
		engine:   engine,
		tokens:   tokens,
		mailer:   mailer,
		baseURL:  baseURL,
		log:      log,
	}
}

func GenerateVerificationToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// Signup handles user registration. Everyone registers as a student; only an
// administrator can change a role afterwards.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	// Validate required fields
	if req.Username == "" || req.Email == "" || req.DisplayName == "" || req.Password == "" {
		http.Error(w, "Username, email, display name, and password are required", http.StatusBadRequest)
		return
	}

	// Check if the username is already taken
	_, err := h.users.FindByUsername(r.Context(), req.Username)
	if err == nil {
		http.Error(w, "Username already exists", http.StatusConflict)
		return
	} else if !trace.IsNotFound(err) {
		writeError(w, err)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	verificationToken, err := GenerateVerificationToken()
	if err != nil {
		http.Error(w, "Failed to generate verification token", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	newUser := models.User{
		Username:          req.Username,
		Email:             req.Email,
		DisplayName:       req.DisplayName,
		PasswordHash:      hashedPassword,
		Role:              models.RoleStudent,
		VerificationToken: verificationToken,
		CreatedAt:         now,
		UpdatedAt:         now,
		Settings: models.UserSettings{
			Theme:         "light",
			Notifications: true,
		},
	}
	if err := h.users.Save(r.Context(), &newUser); err != nil {
		writeError(w, err)
		return
	}

	verificationURL := h.baseURL + "/api/users/verify?token=" + verificationToken
	go func() {
		if err := h.mailer.SendVerificationEmail(newUser.Email, newUser.DisplayName, verificationURL); err != nil {
			h.log.Error("failed to send verification email", "email", newUser.Email, "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(newUser)
}

// VerifyEmail flips the verified bit for the user holding the token.
func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Verification token is required", http.StatusBadRequest)
		return
	}

	user, err := h.users.FindByVerificationToken(r.Context(), token)
	if err != nil {
		if trace.IsNotFound(err) {
			http.Error(w, "Invalid or expired verification token", http.StatusNotFound)
			return
		}
		writeError(w, err)
		return
	}

	user.IsVerified = true
	user.VerificationToken = ""
	user.UpdatedAt = time.Now()
	if err := h.users.Save(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	go func() {
		if err := h.mailer.SendWelcomeEmail(user.Email, user.DisplayName); err != nil {
			h.log.Error("failed to send welcome email", "email", user.Email, "error", err)
		}
	}()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Email verified successfully"))
}

// Signin handles user login and sets the session cookie.
func (h *UserHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	principal, err := h.authn.Authenticate(r.Context(), credentials.Username, credentials.Password)
	if err != nil {
		if trace.IsConnectionProblem(err) {
			writeError(w, err)
			return
		}
		http.Error(w, trace.UserMessage(err), http.StatusUnauthorized)
		return
	}

	token, err := h.tokens.Issue(principal)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(auth.TokenTTL),
		HttpOnly: true,
		Secure:   false,
		Path:     "/api",
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(principal)
}

// ChangePassword lets a signed-in user change their own credential after
// re-proving the current one.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	user, err := h.users.FindByID(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.authn.Authenticate(r.Context(), user.Username, req.CurrentPassword); err != nil {
		writeError(w, err)
		return
	}

	hashedPassword, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hashedPassword
	user.UpdatedAt = time.Now()
	if err := h.users.Save(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Password updated successfully"))
}

// GetUsers lists all users. Admin only via the ManageUsers action.
func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	decision, err := h.engine.Authorize(principal, authz.ActionManageUsers, authz.Target{})
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeError(w, decision.Err())
		return
	}

	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

// ChangeRole updates a user's role. Existing classes and enrollments recorded
// under the old role stay untouched; only future authorization decisions see
// the new role.
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	decision, err := h.engine.Authorize(principal, authz.ActionManageUsers, authz.Target{})
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeError(w, decision.Err())
		return
	}

	userID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !models.ValidRole(req.Role) {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	user.Role = models.Role(req.Role)
	user.UpdatedAt = time.Now()
	if err := h.users.Save(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	h.log.Info("role changed", "user_id", userID.Hex(), "role", req.Role, "changed_by", principal.UserID.Hex())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// GetStudentRecord returns a student's profile with their enrollments.
// Visible to the student themselves, to teachers who have them in a class,
// and to admins.
func (h *UserHandler) GetStudentRecord(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	studentID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid student ID", http.StatusBadRequest)
		return
	}

	decision, err := h.engine.Authorize(principal, authz.ActionViewStudentRecord, authz.Target{StudentID: studentID})
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeError(w, decision.Err())
		return
	}

	student, err := h.users.FindByID(r.Context(), studentID)
	if err != nil {
		writeError(w, err)
		return
	}

	record := struct {
		Student     models.User         `json:"student"`
		Enrollments []models.Enrollment `json:"enrollments"`
	}{
		Student:     *student,
		Enrollments: h.registry.StudentEnrollments(studentID),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}
