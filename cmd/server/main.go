package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sumire/recipebox/internal/config"
	"github.com/sumire/recipebox/internal/handler"
	"github.com/sumire/recipebox/internal/repository"
	"github.com/sumire/recipebox/internal/security"
	"github.com/sumire/recipebox/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg)

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("database connected")

	if cfg.RunMigrations {
		if err := repository.Migrate(db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("database migrated")
	}

	userRepo := repository.NewUserRepository(db)

	tokens, err := security.NewTokenIssuer([]byte(cfg.JWTSecret), []byte(cfg.JWTRefreshSecret))
	if err != nil {
		return fmt.Errorf("create token issuer: %w", err)
	}

	var google service.OAuthProvider
	if cfg.GoogleEnabled() {
		google = service.NewGoogleProvider(service.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			CallbackURL:  cfg.GoogleCallbackURL,
		})
	} else {
		slog.Info("google sign-in disabled")
	}

	authSvc := service.NewAuthService(userRepo, security.NewBcryptHasher(cfg.BcryptCost), tokens, google)
	userSvc := service.NewUserService(userRepo)

	cookies := handler.CookieBinder{Secure: cfg.CookieSecure, SameSite: cfg.CookieSameSite}
	authHandler := handler.NewAuthHandler(authSvc, cookies, cfg.FrontendURL)
	userHandler := handler.NewUserHandler(userSvc, cookies)
	healthHandler := handler.NewHealthHandler(userRepo)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Validator = handler.NewAppValidator()

	e.Use(middleware.RequestID())
	e.Use(handler.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.SecureWithConfig(secureConfig(cfg)))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType, handler.CSRFHeaderName},
		ExposeHeaders:    []string{echo.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	e.Use(handler.RateLimit(cfg.ThrottleTTL, cfg.ThrottleLimit))
	e.Use(handler.CSRF(handler.CSRFConfig{
		Secure:      cfg.IsProduction(),
		ExemptPaths: []string{"/auth/csrf"},
	}))

	handler.Mount(e, handler.NewGate(authSvc),
		healthHandler.Routes(),
		authHandler.Routes(),
		userHandler.Routes(),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func setupLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func secureConfig(cfg config.Config) middleware.SecureConfig {
	sc := middleware.DefaultSecureConfig
	sc.ContentSecurityPolicy = "default-src 'self'"
	sc.ReferrerPolicy = "no-referrer"
	if cfg.IsProduction() {
		sc.HSTSMaxAge = 15552000
		sc.HSTSExcludeSubdomains = false
	}
	return sc
}
