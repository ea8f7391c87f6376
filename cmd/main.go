package main

import (
	"net/http"
	"time"

	"github.com/senyabanana/marketplace-service/internal/db"
	"github.com/senyabanana/marketplace-service/internal/handlers"
	"github.com/senyabanana/marketplace-service/internal/repository"
	"github.com/senyabanana/marketplace-service/internal/router"
	"github.com/senyabanana/marketplace-service/internal/router/config"
	"github.com/senyabanana/marketplace-service/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatal("cannot load config: ", err)
	}

	runDBMigration(logger, cfg.MigrationURL, cfg.PostgresConn)

	dbPool, err := db.InitDb(cfg)
	if err != nil {
		logger.Fatalf("error initializing database: %v", err)
	}
	defer dbPool.Close()

	timeout := time.Duration(cfg.RequestTimeoutSecond) * time.Second
	urgentLeadTime := time.Duration(cfg.UrgentExpiryMinutes) * time.Minute

	events := services.NewLogEventSink(logger)

	requestRepo := repository.NewPostgresRequestRepository(dbPool)
	offerRepo := repository.NewPostgresOfferRepository(dbPool)

	requestService := services.NewRequestService(requestRepo, events, urgentLeadTime)
	offerService := services.NewOfferService(requestRepo, offerRepo, events)

	requestHandler := handlers.NewRequestHandler(requestService, logger, timeout, dbPool)
	offerHandler := handlers.NewOfferHandler(offerService, logger, timeout, dbPool)

	routes := router.InitRoutes(requestHandler, offerHandler)

	logger.Infof("server is listening on %s...", cfg.ServerAddress)
	if err := http.ListenAndServe(cfg.ServerAddress, routes); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

func runDBMigration(logger *logrus.Logger, migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		logger.Fatal("cannot create a new migrate instance: ", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		logger.Fatal("failed to run migrate up: ", err)
	}
	logger.Info("db migrated successfully")
}
