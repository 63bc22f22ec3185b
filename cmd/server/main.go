package main

import (
	"database/sql"
	"net/http"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mediarank/mediarank/internal/api"
	"github.com/mediarank/mediarank/internal/app"
	"github.com/mediarank/mediarank/internal/config"
	"github.com/mediarank/mediarank/internal/db"
	"github.com/mediarank/mediarank/internal/middleware"
	"github.com/mediarank/mediarank/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Environment)
	defer func() { _ = logger.Sync() }()

	sqlDB, err := sql.Open("sqlite3", cfg.DBPath+"?_busy_timeout=5000")
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(sqlDB, ""); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	store, err := db.NewSQLiteStore(sqlDB)
	if err != nil {
		logger.Fatal("init store", zap.Error(err))
	}

	activity := services.NewActivityService(store, logger)
	auth := services.NewAuthService(store, middleware.SignAdminToken, activity)
	tests := services.NewTestService(store, activity)
	gate := services.NewSessionGate(store, activity)
	ratings := services.NewRatingService(gate, store, activity)
	results := services.NewResultsService(store)
	catalog := services.NewCatalogService(store, activity)

	mux := http.NewServeMux()
	api.NewRouter(api.Deps{
		Logger:      logger,
		FrontendURL: cfg.FrontendURL,
		Auth:        auth,
		Tests:       tests,
		Gate:        gate,
		Ratings:     ratings,
		Results:     results,
		Catalog:     catalog,
		Activity:    activity,
	}).Register(mux)

	handler := middleware.CORS(middleware.SecureHeaders(middleware.WithAuth(mux)))

	logger.Info("listening",
		zap.String("addr", cfg.Addr),
		zap.String("db", cfg.DBPath),
		zap.String("env", cfg.Environment),
	)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
