package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mkaur-dev/school-backend/internal/auth"
	"github.com/mkaur-dev/school-backend/internal/handlers"
	"github.com/mkaur-dev/school-backend/internal/middleware"
)

// SetupRouter wires all endpoints. Signup, signin, verification and the
// health check are public; everything else requires a session.
func SetupRouter(userHandler *handlers.UserHandler, classHandler *handlers.ClassHandler, tokens *auth.TokenIssuer) *mux.Router {
	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Server is healthy"))
	}).Methods("GET")

	router.HandleFunc("/api/users/signup", userHandler.Signup).Methods("POST")
	router.HandleFunc("/api/users/signin", userHandler.Signin).Methods("POST")
	router.HandleFunc("/api/users/verify", userHandler.VerifyEmail).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequireAuth(tokens))

	api.HandleFunc("/users", userHandler.GetUsers).Methods("GET")
	api.HandleFunc("/users/password", userHandler.ChangePassword).Methods("PUT")
	api.HandleFunc("/users/{id}/role", userHandler.ChangeRole).Methods("PUT")
	api.HandleFunc("/students/{id}/record", userHandler.GetStudentRecord).Methods("GET")

	api.HandleFunc("/classes", classHandler.CreateClass).Methods("POST")
	api.HandleFunc("/classes", classHandler.GetClasses).Methods("GET")
	api.HandleFunc("/classes/{id}", classHandler.GetClassByID).Methods("GET")
	api.HandleFunc("/classes/{id}", classHandler.UpdateClass).Methods("PUT")
	api.HandleFunc("/classes/{id}", classHandler.DeleteClass).Methods("DELETE")
	api.HandleFunc("/classes/{id}/capacity", classHandler.UpdateCapacity).Methods("PUT")
	api.HandleFunc("/classes/{id}/enroll", classHandler.Enroll).Methods("POST")
	api.HandleFunc("/classes/{id}/unenroll", classHandler.Unenroll).Methods("POST")

	return router
}
