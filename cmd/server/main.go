package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"assetvision/internal/auth"
	"assetvision/internal/config"
	"assetvision/internal/database"
	"assetvision/internal/handlers"
	"assetvision/internal/jobs"
	"assetvision/internal/ledger"
	"assetvision/internal/logger"
	"assetvision/internal/metrics"
	"assetvision/internal/middleware"
	"assetvision/internal/models"
	"assetvision/internal/repository"
	"assetvision/internal/valuation"
)

// App holds the application dependencies.
type App struct {
	config           *config.Config
	log              zerolog.Logger
	db               *database.DB
	router           *chi.Mux
	userRepo         *repository.UserRepository
	assetRepo        *repository.AssetRepository
	rateRepo         *repository.RateRepository
	portfolioRepo    *repository.PortfolioRepository
	tokenManager     *auth.TokenManager
	authMiddleware   *middleware.AuthMiddleware
	authHandler      *handlers.AuthHandler
	userHandler      *handlers.UserHandler
	assetHandler     *handlers.AssetHandler
	rateHandler      *handlers.RateHandler
	portfolioHandler *handlers.PortfolioHandler
}

func main() {
	cfg := config.New()

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	db, err := database.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Str("path", cfg.DBPath).Msg("database migrations completed")

	userRepo := repository.NewUserRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	rateRepo := repository.NewRateRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)

	if err := ensureDefaultAdmin(userRepo, log); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure default admin")
	}

	engine := valuation.NewEngine(portfolioRepo, assetRepo, rateRepo)
	positionLedger := ledger.New(portfolioRepo, assetRepo)

	tokenManager := auth.NewTokenManager(db).WithDuration(cfg.TokenTTL)
	authMiddleware := middleware.NewAuthMiddleware(tokenManager, userRepo)

	app := &App{
		config:           cfg,
		log:              log,
		db:               db,
		userRepo:         userRepo,
		assetRepo:        assetRepo,
		rateRepo:         rateRepo,
		portfolioRepo:    portfolioRepo,
		tokenManager:     tokenManager,
		authMiddleware:   authMiddleware,
		authHandler:      handlers.NewAuthHandler(userRepo, tokenManager, log),
		userHandler:      handlers.NewUserHandler(userRepo, tokenManager, log),
		assetHandler:     handlers.NewAssetHandler(assetRepo, log),
		rateHandler:      handlers.NewRateHandler(rateRepo, log),
		portfolioHandler: handlers.NewPortfolioHandler(portfolioRepo, assetRepo, engine, positionLedger, log),
	}
	app.setupRouter()

	scheduler := jobs.NewScheduler(tokenManager, rateRepo, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start background jobs")
	}
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      app.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func (app *App) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Compress(5))
	r.Use(app.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.SecurityHeaders)
	r.Use(metrics.Middleware)

	// Resolve the bearer token on every route; enforcement happens per group.
	r.Use(app.authMiddleware.LoadUser)

	r.Get("/health", handlers.Health)
	r.Method("GET", "/metrics", metrics.Handler())

	// Login and registration are open but rate limited.
	r.Group(func(r chi.Router) {
		r.Use(middleware.LimitAuth)
		r.Post("/login", app.authHandler.Login)
		r.Post("/users", app.userHandler.Create)
	})

	// Everything else requires a valid token.
	r.Group(func(r chi.Router) {
		r.Use(app.authMiddleware.RequireAuth)
		r.Use(middleware.LimitAPI)

		// Users
		r.Get("/users", app.userHandler.List)
		r.Get("/users/{username}", app.userHandler.Get)
		r.Patch("/users/{username}", app.userHandler.Update)
		r.Delete("/users/{username}", app.userHandler.Delete)

		// Assets
		r.Post("/assets", app.assetHandler.Create)
		r.Get("/assets", app.assetHandler.List)
		r.Get("/assets/{symbol}", app.assetHandler.Get)
		r.Patch("/assets/{symbol}", app.assetHandler.Update)
		r.Delete("/assets/{symbol}", app.assetHandler.Delete)

		// Rates
		r.Post("/rates", app.rateHandler.Create)
		r.Get("/rates", app.rateHandler.List)
		r.Get("/rates/{symbol}", app.rateHandler.Get)
		r.Patch("/rates/{symbol}", app.rateHandler.Update)
		r.Delete("/rates/{symbol}", app.rateHandler.Delete)

		// Portfolios
		r.Post("/portfolios", app.portfolioHandler.Create)
		r.Get("/portfolios", app.portfolioHandler.List)
		r.Get("/portfolios/{name}", app.portfolioHandler.Get)
		r.Delete("/portfolios/{name}", app.portfolioHandler.Delete)
		r.Get("/portfolios/{name}/value", app.portfolioHandler.Value)
		r.Get("/portfolios/{name}/cost", app.portfolioHandler.Cost)
		r.Get("/portfolios/{name}/return", app.portfolioHandler.TotalReturn)
		r.Get("/portfolios/{name}/return/by-class", app.portfolioHandler.ReturnByClass)
		r.Get("/portfolios/{name}/return/by-zone", app.portfolioHandler.ReturnByZone)
		r.Get("/portfolios/{name}/assets", app.portfolioHandler.Assets)
		r.Post("/portfolios/{name}/buy", app.portfolioHandler.Buy)
		r.Post("/portfolios/{name}/sell", app.portfolioHandler.Sell)
	})

	app.router = r
}

// requestLogger logs one structured line per request.
func (app *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		app.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}

// ensureDefaultAdmin creates a default admin user if no users exist.
func ensureDefaultAdmin(userRepo *repository.UserRepository, log zerolog.Logger) error {
	count, err := userRepo.CountAll()
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return nil
	}

	passwordHash, err := auth.HashPassword("changeme")
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	admin := &models.User{
		Username:     "admin",
		PasswordHash: passwordHash,
		Email:        "admin@localhost",
		Roles:        []string{"admin", "user"},
	}
	if _, err := userRepo.Create(admin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	log.Warn().
		Str("username", "admin").
		Str("password", "changeme").
		Msg("default admin created; change this password immediately")

	return nil
}
