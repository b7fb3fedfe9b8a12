package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mkaur-dev/school-backend/internal/authz"
	"github.com/mkaur-dev/school-backend/internal/middleware"
	"github.com/mkaur-dev/school-backend/internal/models"
	"github.com/mkaur-dev/school-backend/internal/registry"
)

type ClassHandler struct {
	registry *registry.Registry
	engine   *authz.Engine
	log      *slog.Logger
}

func NewClassHandler(reg *registry.Registry, engine *authz.Engine, log *slog.Logger) *ClassHandler {
	return &ClassHandler{registry: reg, engine: engine, log: log}
}

// CreateClass handles creating a new class. A teacher becomes the owner; an
// admin must name the owning teacher.
func (h *ClassHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
		OwnerID  string `json:"owner_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	decision, err := h.engine.Authorize(principal, authz.ActionCreateClass, authz.Target{})
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeError(w, decision.Err())
		return
	}

	ownerID := principal.UserID
	if principal.Role == models.RoleAdmin {
		if req.OwnerID == "" {
			http.Error(w, "owner_id is required when an admin creates a class", http.StatusBadRequest)
			return
		}
		ownerID, err = primitive.ObjectIDFromHex(req.OwnerID)
		if err != nil {
			http.Error(w, "Invalid owner ID", http.StatusBadRequest)
			return
		}
	}

	class, err := h.registry.CreateClass(r.Context(), ownerID, req.Name, req.Capacity)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(class)
}

// GetClasses lists unarchived classes for any authenticated user. Admins may
// ask for archived ones too.
func (h *ClassHandler) GetClasses(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	includeArchived := r.URL.Query().Get("include_archived") == "true" && principal.Role == models.RoleAdmin
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.registry.ListClasses(includeArchived))
}

// GetClassByID returns one class with its enrolled count; owners and admins
// also get the roster.
func (h *ClassHandler) GetClassByID(w http.ResponseWriter, r *http.Request) {
	principal, classID, ok := h.principalAndClass(w, r)
	if !ok {
		return
	}

	decision, err := h.engine.Authorize(principal, authz.ActionViewClass, authz.Target{ClassID: classID})
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeError(w, decision.Err())
		return
	}

	summary, err := h.registry.GetClass(classID)
	if err != nil {
		writeError(w, err)
		return
	}

	response := struct {
		registry.ClassSummary
		Roster []models.Enrollment `json:"roster,omitempty"`
	}{ClassSummary: summary}

	if principal.Role == models.RoleAdmin || summary.Class.OwnerID == principal.UserID {
		roster, err := h.registry.ClassEnrollments(classID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.Roster = roster
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// UpdateClass renames a class and/or flips its archived flag.
func (h *ClassHandler) UpdateClass(w http.ResponseWriter, r *http.Request) {
	principal, classID, ok := h.principalAndClass(w, r)
	if !ok {
		return
	}

	var req struct {
		Name     *string `json:"name,omitempty"`
		Archived *bool   `json:"archived,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	decision, err := h.engine.Authorize(principal, authz.ActionUpdateClass, authz.Target{ClassID: classID})
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeError(w, decision.Err())
		return
	}

	if req.Name != nil {
		if err := h.registry.Rename(r.Context(), classID, *req.Name); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Archived != nil {
		if err := h.registry.SetArchived(r.Context(), classID, *req.Archived); err != nil {
			writeError(w, err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Class updated successfully"))
}

// UpdateCapacity changes the class capacity.
func (h *ClassHandler) UpdateCapacity(w http.ResponseWriter, r *http.Request) {
	principal, classID, ok := h.principalAndClass(w, r)
	if !ok {
		return
	}

	var req struct {
		Capacity int `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	decision, err := h.engine.Authorize(principal, authz.ActionUpdateClass, authz.Target{ClassID: classID})
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeError(w, decision.Err())
		return
	}

	if err := h.registry.UpdateCapacity(r.Context(), classID, req.Capacity); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Capacity updated successfully"))
}

// DeleteClass deletes a class. The cascade override removes a non-empty class
// together with its enrollments and is reserved for admins.
func (h *ClassHandler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	principal, classID, ok := h.principalAndClass(w, r)
	if !ok {
		return
	}

	cascade := r.URL.Query().Get("cascade") == "true"
	if cascade && principal.Role != models.RoleAdmin {
		http.Error(w, "Cascading delete requires an administrator", http.StatusForbidden)
		return
	}

	decision, err := h.engine.Authorize(principal, authz.ActionDeleteClass, authz.Target{ClassID: classID})
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeError(w, decision.Err())
		return
	}

	if err := h.registry.DeleteClass(r.Context(), classID, cascade); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Class deleted successfully"))
}

// Enroll adds a student to a class. Students enroll themselves; teachers and
// admins may enroll someone else.
func (h *ClassHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	principal, classID, ok := h.principalAndClass(w, r)
	if !ok {
		return
	}

	studentID, action, ok := h.enrollmentTarget(w, r, principal)
	if !ok {
		return
	}

	decision, err := h.engine.Authorize(principal, action, authz.Target{ClassID: classID, StudentID: studentID})
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeError(w, decision.Err())
		return
	}

	enrollment, err := h.registry.Enroll(r.Context(), classID, studentID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(enrollment)
}

// Unenroll removes a student from a class. Idempotent: removing an absent
// enrollment also succeeds.
func (h *ClassHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	principal, classID, ok := h.principalAndClass(w, r)
	if !ok {
		return
	}

	var req struct {
		StudentID string `json:"student_id,omitempty"`
	}
	// The body is optional for self-unenroll.
	_ = json.NewDecoder(r.Body).Decode(&req)

	studentID := principal.UserID
	if req.StudentID != "" {
		var err error
		studentID, err = primitive.ObjectIDFromHex(req.StudentID)
		if err != nil {
			http.Error(w, "Invalid student ID", http.StatusBadRequest)
			return
		}
	}

	decision, err := h.engine.Authorize(principal, authz.ActionUnenroll, authz.Target{ClassID: classID, StudentID: studentID})
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeError(w, decision.Err())
		return
	}

	if err := h.registry.Unenroll(r.Context(), classID, studentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Unenrolled successfully"))
}

func (h *ClassHandler) principalAndClass(w http.ResponseWriter, r *http.Request) (models.Principal, primitive.ObjectID, bool) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return models.Principal{}, primitive.NilObjectID, false
	}
	classID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid class ID", http.StatusBadRequest)
		return models.Principal{}, primitive.NilObjectID, false
	}
	return principal, classID, true
}

func (h *ClassHandler) enrollmentTarget(w http.ResponseWriter, r *http.Request, principal models.Principal) (primitive.ObjectID, authz.Action, bool) {
	var req struct {
		StudentID string `json:"student_id,omitempty"`
	}
	// The body is optional for self-enrollment.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.StudentID == "" || req.StudentID == principal.UserID.Hex() {
		return principal.UserID, authz.ActionEnrollSelf, true
	}
	studentID, err := primitive.ObjectIDFromHex(req.StudentID)
	if err != nil {
		http.Error(w, "Invalid student ID", http.StatusBadRequest)
		return primitive.NilObjectID, "", false
	}
	return studentID, authz.ActionEnrollOther, true
}
