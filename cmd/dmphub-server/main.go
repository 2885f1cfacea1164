// Package main provides the dmphub registry server entry point. It hosts the
// record API, the provenance admin API, and the augment-job queue under a
// single process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dmphub/dmphub/pkg/api"
	"github.com/dmphub/dmphub/pkg/cache"
	"github.com/dmphub/dmphub/pkg/dmp"
	"github.com/dmphub/dmphub/pkg/jobs"
	"github.com/dmphub/dmphub/pkg/matching"
	"github.com/dmphub/dmphub/pkg/registry"
	"github.com/dmphub/dmphub/pkg/store"
)

// augmenterProvenance is the provenance key the background matcher writes
// its assertions under.
const augmenterProvenance = "dmphub-augmenter"

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "sqlite", "Database type (sqlite, postgres or mysql)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.Parse()

	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := registry.ConfigFromEnv()
	jobCfg := jobs.JobConfigFromEnv()

	logger.Info("starting dmphub server",
		"listen", listenAddr,
		"dbType", databaseType,
		"coalesceWindow", cfg.CoalesceWindow.String(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	records := store.NewRecordStore(gormDB)
	provenances := store.NewProvenanceStore(gormDB)
	events := registry.NewEventStore(gormDB)
	jobStore := jobs.NewJobStore(gormDB)

	// Serialize migrations across replicas sharing one database.
	locker := store.NewMigrationLocker(gormDB)
	err = locker.WithLock(ctx, func() error {
		if err := records.AutoMigrate(); err != nil {
			return err
		}
		if err := events.AutoMigrate(); err != nil {
			return err
		}
		return jobStore.AutoMigrate()
	})
	if err != nil {
		glog.Fatalf("Failed to migrate registry tables: %v", err)
	}

	svc := registry.NewService(records, provenances, events, cfg, logger)
	augmenter := matching.NewAugmenter(augmenterProvenance, nil, logger)

	pool := jobs.NewWorkerPool(jobStore, func(ctx context.Context, identifier string, works []matching.CandidateWork) (int, error) {
		return svc.ApplyLedger(identifier, func(rec dmp.Record) (dmp.Record, int) {
			return augmenter.AddModifications(rec, works)
		})
	}, jobCfg, logger)
	go pool.Run(ctx)

	router := chi.NewRouter()
	router.Mount("/", api.NewRouter(&api.Handlers{
		Service:     svc,
		Provenances: provenances,
		Events:      events,
		Augmenter:   augmenter,
		Comparator:  matching.NewComparator(),
		Cache:       cache.NewManager(cache.CacheConfigFromEnv()),
		Logger:      logger,
	}))
	router.Mount("/jobs", jobs.NewRouter(jobStore, logger))

	logger.Info("dmphub server ready", "listen", listenAddr)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("dmphub server stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
	}
	if dbType == "" {
		dbType = os.Getenv("DATABASE_TYPE")
		if dbType == "" {
			dbType = "sqlite"
		}
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	switch dbType {
	case "sqlite":
		if dsn == "" {
			dsn = "dmphub.db"
		}
		return gorm.Open(sqlite.Open(dsn), gormCfg)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required for postgres (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
		return gorm.Open(postgres.Open(dsn), gormCfg)
	case "mysql":
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required for mysql (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
		return gorm.Open(mysql.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected sqlite, postgres or mysql)", dbType)
	}
}
