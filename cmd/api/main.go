package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/rs/cors"

	"github.com/mkaur-dev/school-backend/internal/auth"
	"github.com/mkaur-dev/school-backend/internal/authz"
	"github.com/mkaur-dev/school-backend/internal/config"
	"github.com/mkaur-dev/school-backend/internal/database"
	"github.com/mkaur-dev/school-backend/internal/handlers"
	"github.com/mkaur-dev/school-backend/internal/middleware"
	"github.com/mkaur-dev/school-backend/internal/registry"
	"github.com/mkaur-dev/school-backend/internal/routes"
	"github.com/mkaur-dev/school-backend/internal/store"
	"github.com/mkaur-dev/school-backend/internal/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Connect to MongoDB
	client, err := database.ConnectMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Fatal("Failed to disconnect from MongoDB:", err)
		}
	}()

	userStore := store.NewMongoUserStore(client, cfg.DatabaseName)
	classStore := store.NewMongoClassStore(client, cfg.DatabaseName)

	// Load the class/enrollment registry from the store
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	reg, err := registry.New(ctx, classStore, userStore, logger)
	cancel()
	if err != nil {
		log.Fatalf("Failed to load registry: %v", err)
	}

	authenticator := auth.NewAuthenticator(userStore, auth.BcryptVerifier{}, logger)
	engine := authz.NewEngine(reg)
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret))
	mailer := utils.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, logger)

	userHandler := handlers.NewUserHandler(userStore, reg, authenticator, engine, tokens, mailer, cfg.BaseURL, logger)
	classHandler := handlers.NewClassHandler(reg, engine, logger)

	// Initialize router
	router := routes.SetupRouter(userHandler, classHandler, tokens)
	handler := middleware.RequestLog(logger)(router)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	handler = c.Handler(handler)

	// Start server
	logger.Info("server running", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
