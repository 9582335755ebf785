package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"aetherium-hardware/internal/audit"
	"aetherium-hardware/internal/auth"
	"aetherium-hardware/internal/db"
	"aetherium-hardware/internal/maintenance"
	"aetherium-hardware/internal/observability"
	"aetherium-hardware/internal/product"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the whole application from environment configuration and
// returns the root HTTP handler.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	baseURL := envOrDefault("APP_URL", "http://localhost:8080")

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		applied, err := db.RunMigrations(database)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if applied > 0 {
			logger.Info("migrations_applied", map[string]any{"count": applied})
		}
	}

	sessionTimeout := envSecondsOrDefault("SESSION_TIMEOUT_SECONDS", 3600)
	lockoutWindow := envSecondsOrDefault("LOCKOUT_WINDOW_SECONDS", 900)
	tokenLifetime := envSecondsOrDefault("TOKEN_LIFETIME_SECONDS", 604800)

	authRepo := auth.NewRepository(database)
	sessions := auth.NewSessionManager(authRepo, sessionTimeout)
	lockouts := auth.NewLockoutTracker(authRepo, envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5), lockoutWindow)
	tokens := auth.NewTokenCodec(jwtSecret, baseURL, tokenLifetime, nil)
	hasher := auth.NewHasher(envIntOrDefault("BCRYPT_COST", 12))
	recorder := audit.NewRecorder(database, logger)

	authService := auth.NewService(authRepo, sessions, lockouts, tokens, hasher).
		WithAudit(recorder).
		WithPasswordMinLength(envIntOrDefault("PASSWORD_MIN_LENGTH", 8))
	authHandler := auth.NewHandler(authService)

	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		sessionTimeout,
		lockoutWindow,
		envDaysOrDefault("ACTIVITY_LOG_RETENTION_DAYS", 90),
		envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
	)

	productRepo := product.NewRepository(database)
	productHandler := product.NewHandler(productRepo)

	loginLimiter := auth.NewLoginRateLimiter(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /auth/me", authHandler.Me)
	mux.HandleFunc("POST /auth/update-profile", authHandler.UpdateProfile)
	mux.HandleFunc("POST /auth/change-password", authHandler.ChangePassword)
	mux.HandleFunc("POST /auth/verify-token", authHandler.VerifyToken)
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))
	mux.HandleFunc("GET /products", productHandler.ListProducts)
	mux.HandleFunc("GET /products/categories", productHandler.ListCategories)
	mux.HandleFunc("GET /products/{id}", productHandler.GetProduct)
	mux.Handle("POST /products", authHandler.Middleware(http.HandlerFunc(productHandler.CreateProduct)))
	mux.Handle("PUT /products/{id}", authHandler.Middleware(http.HandlerFunc(productHandler.UpdateProduct)))
	mux.Handle("DELETE /products/{id}", authHandler.Middleware(http.HandlerFunc(productHandler.DeleteProduct)))

	allowedOrigins := splitAndTrim(envOrDefault("ALLOWED_ORIGINS", baseURL))
	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger,
			CORSMiddleware(allowedOrigins, mux)))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
