package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/flowstudio/studio-api/internal/models"
	"github.com/flowstudio/studio-api/internal/repository"
	"github.com/flowstudio/studio-api/pkg/config"
	"github.com/flowstudio/studio-api/pkg/database"
	"github.com/flowstudio/studio-api/pkg/logger"
)

// seed provisions an account directly in the database. There is no public
// registration endpoint; staff and members are created out of band.
func main() {
	email := flag.String("email", "", "account email (required)")
	password := flag.String("password", "", "initial password (required)")
	fullName := flag.String("name", "", "full name")
	role := flag.String("role", string(models.RoleAlumna), "role: ADMIN, INSTRUCTOR or ALUMNA")
	plan := flag.String("plan", string(models.PlanFree), "plan: free or activa")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	userRole := models.UserRole(*role)
	if !userRole.Valid() {
		log.Fatalf("unknown role %q", *role)
	}
	userPlan := models.Plan(*plan)
	if !userPlan.Valid() {
		log.Fatalf("unknown plan %q", *plan)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := database.Migrate(ctx, db, cfg.Database.MigrationsDir); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		logr.Fatal("failed to hash password", zap.Error(err))
	}

	user := &models.User{
		Email:        *email,
		PasswordHash: string(hash),
		FullName:     *fullName,
		Role:         userRole,
		Plan:         userPlan,
		Active:       true,
	}
	if err := repository.NewUserRepository(db).Create(ctx, user); err != nil {
		logr.Fatal("failed to create user", zap.Error(err))
	}

	logr.Info("account created",
		zap.String("id", user.ID),
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)),
		zap.String("plan", string(user.Plan)),
	)
}
