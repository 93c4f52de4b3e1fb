package flowengine

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/underwritepro/flowengine/internal/config"
	"github.com/underwritepro/flowengine/internal/controllers"
	"github.com/underwritepro/flowengine/internal/engine"
	"github.com/underwritepro/flowengine/internal/handlers"
	"github.com/underwritepro/flowengine/internal/migrations"
	"github.com/underwritepro/flowengine/internal/repository"
	"github.com/underwritepro/flowengine/pkg/flowengine/core"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lmittmann/tint"

	_ "github.com/go-sql-driver/mysql"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Options carries the host platform's side-effect implementations. The
// engine runs without any of them, but action types whose capability is nil
// fail permanently with a "no handler" error when a workflow uses them.
type Options struct {
	Resolver handlers.Registry
	Entities engine.EntityResolver
}

// Start boots the workflow engine and HTTP server.
// This call blocks until the HTTP server stops.
func Start(mux *http.ServeMux, opts Options) error {

	databaseType := config.GetSystemSettingString(config.DATABASE_TYPE)
	if databaseType == "" || (databaseType != config.DATABASE_TYPE_POSTGRES && databaseType != config.DATABASE_TYPE_MYSQL && databaseType != config.DATABASE_TYPE_SQLLITE) {
		panic("FLOW_DATABASE_TYPE must be set to one of the following values: POSTGRES, MYSQL, SQLLITE")
	}

	var db *sql.DB
	if databaseType == config.DATABASE_TYPE_POSTGRES {
		db = setupPostgresDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_SQLLITE {
		db = setupSqlLiteDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_MYSQL {
		db = setupMysqlDatabase()
		defer db.Close()
	}

	clock := &core.RealClock{}
	workflowRepo := repository.NewWorkflowRepository(db, clock)
	executionRepo := repository.NewExecutionRepository(db, clock)
	pointsRepo := repository.NewPointsRepository(db, clock)
	executorRepo := repository.NewExecutorRepository(db)

	registry, err := engine.NewTriggerRegistry(workflowRepo)
	if err != nil {
		slog.Error("Failed to compile config schemas", "error", err)
		return err
	}
	if err := registry.Reload(); err != nil {
		slog.Error("Failed to load trigger registry", "error", err)
		return err
	}

	gamification := engine.NewGamificationHook(pointsRepo)
	if opts.Resolver.Points == nil {
		opts.Resolver.Points = gamification
	}

	retryConfig := engine.RetryConfig{
		MaxAttempts:      config.GetSystemSettingInteger(config.ENGINE_MAX_ATTEMPTS),
		RetryIntervalMin: parseDurationSetting(config.ENGINE_RETRY_INTERVAL_MIN),
		RetryIntervalMax: parseDurationSetting(config.ENGINE_RETRY_INTERVAL_MAX),
	}
	handlerTimeout := parseDurationSetting(config.ENGINE_HANDLER_TIMEOUT)

	actionExecutor := engine.NewActionExecutor(workflowRepo, executionRepo, opts.Entities,
		opts.Resolver.Handlers(), retryConfig, handlerTimeout, clock)
	scheduler := engine.NewScheduler(executionRepo, executorRepo, actionExecutor, clock)

	pollInterval := parseDurationSetting(config.ENGINE_POLL_INTERVAL)
	go scheduler.StartEngine(context.Background(), pollInterval)

	eng := engine.NewEngine(registry, workflowRepo, executionRepo, gamification, scheduler, clock)

	if mux == nil {
		mux = http.NewServeMux()
	}
	eventsController := controllers.NewEventsController(eng)
	eventsController.RegisterRoutes(mux)
	workflowsController := controllers.NewWorkflowsController(eng)
	workflowsController.RegisterRoutes(mux)
	executionsController := controllers.NewExecutionsController(eng)
	executionsController.RegisterRoutes(mux)
	pointsController := controllers.NewPointsController(pointsRepo)
	pointsController.RegisterRoutes(mux)
	executorsController := controllers.NewExecutorsController(executorRepo)
	executorsController.RegisterRoutes(mux)

	addr := ":" + config.GetSystemSettingString(config.ENGINE_SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

func parseDurationSetting(settingKey string) time.Duration {
	dur, err := time.ParseDuration(config.GetSystemSettingString(settingKey))
	if err != nil {
		panic(settingKey + " is not a valid duration: " + err.Error())
	}
	return dur
}

func setupPostgresDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("FLOW_DATABASE_URL must be set when using the POSTGRES database type")
	}
	slog.Info("Using Postgres database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("postgres", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening Postgres database")
	dbPostgres, err := sql.Open("postgres", dbURL)
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbPostgres
}

func setupSqlLiteDatabase() *sql.DB {
	fileName := config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME)
	if fileName == "" {
		panic("FLOW_DATABASE_SQLLITE_FILE_NAME must be set")
	}
	dbURL := "sqlite3://" + fileName
	slog.Info("Using SQLite database", "file", fileName)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("sqllite3", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening SQLite database")
	dbSqlLite, err := sql.Open("sqlite3", fileName)
	if err != nil {
		log.Fatalf("Failed to open SQLite DB: %v", err)
	}
	if err := dbSqlLite.Ping(); err != nil {
		log.Fatalf("Failed to ping SQLite DB: %v", err)
	}
	return dbSqlLite
}

func setupMysqlDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("FLOW_DATABASE_URL must be set when using the MYSQL database type")
	}
	if !strings.Contains(dbURL, "parseTime=true") {
		panic("FLOW_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	if !strings.HasPrefix(dbURL, "mysql://") {
		panic("FLOW_DATABASE_URL must start with 'mysql://' for MySQL")
	}

	slog.Info("Using MySQL database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("mysql", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening MySQL database")
	dbMysql, err := sql.Open("mysql", strings.Replace(dbURL, "mysql://", "", 1))
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbMysql
}

func runMigrationsFromEmbed(migrationsPath string, dbURL string) error {
	sub, err := fs.Sub(migrations.FS, migrationsPath)
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func SetupLogger() {
	w := os.Stderr
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}
