package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ozkimya/pricer/internal/config"
	"github.com/ozkimya/pricer/internal/db"
	"github.com/ozkimya/pricer/internal/history"
	"github.com/ozkimya/pricer/internal/inventory"
	"github.com/ozkimya/pricer/internal/logger"
	"github.com/ozkimya/pricer/internal/migrations"
	"github.com/ozkimya/pricer/internal/rates"
	"github.com/ozkimya/pricer/internal/seed"
)

type server struct {
	auth      *authService
	db        *sql.DB
	log       *zap.Logger
	inventory *inventory.Repo
	rates     *rates.Repo
	history   *history.Repo
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database, "migrations"); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	}

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatal("failed to run startup seed", zap.Error(err))
	}
	if stats.Inserts > 0 {
		log.Info("startup seed applied", zap.Int("inserts", stats.Inserts))
	}

	srv := &server{
		auth:      newAuthService(database, cfg.SessionSecret),
		db:        database,
		log:       log,
		inventory: inventory.NewRepo(database),
		rates:     rates.NewRepo(database),
		history:   history.NewRepo(database),
	}

	r := srv.routes(cfg.MetricsEnabled)

	addr := ":" + cfg.Port
	log.Info("listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func (s *server) routes(metricsEnabled bool) chi.Router {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)
	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/items", s.handleItemsList)
		r.Post("/items", s.handleItemsCreate)
		r.Put("/items/{id}", s.handleItemsUpdate)
		r.Get("/recipes", s.handleRecipesList)
		r.Post("/recipes", s.handleRecipesCreate)
		r.Get("/recipes/{id}", s.handleRecipesGet)
		r.Get("/rates", s.handleRatesGet)
		r.Put("/rates", s.handleRatesPut)
		r.Post("/pricing", s.handlePricingCompute)
		r.Post("/pricing/manual", s.handlePricingManual)
		r.Get("/history", s.handleHistoryList)
		r.Get("/history/export", s.handleHistoryExport)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAuthenticated(r, s.auth) {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
