package hireflow

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

	"github.com/hireflow/hireflow/internal/config"
	"github.com/hireflow/hireflow/internal/controllers"
	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/engine"
	"github.com/hireflow/hireflow/internal/migrations"
	"github.com/hireflow/hireflow/internal/notify"
	"github.com/hireflow/hireflow/internal/orchestrator"
	"github.com/hireflow/hireflow/internal/repository"

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

// Start boots the pipeline engine, the delivery queue and the HTTP server.
// This call blocks until the HTTP server stops.
func Start(mux *http.ServeMux) error {

	databaseType := config.GetSystemSettingString(config.DATABASE_TYPE)
	if databaseType == "" || (databaseType != config.DATABASE_TYPE_POSTGRES && databaseType != config.DATABASE_TYPE_MYSQL && databaseType != config.DATABASE_TYPE_SQLLITE) {
		panic("HFLOW_DATABASE_TYPE must be set to one of the following values: POSTGRES, MYSQL, SQLLITE")
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

	templateRepo := repository.NewPipelineTemplateRepository(db, clock)
	workflowRepo := repository.NewWorkflowRepository(db, clock)
	stateRecordRepo := repository.NewStateRecordRepository(db, clock)
	historyRepo := repository.NewHistoryRepository(db, clock)
	interviewRepo := repository.NewInterviewRepository(db, clock)
	notificationRepo := repository.NewNotificationRepository(db, clock)
	preferenceRepo := repository.NewPreferenceRepository(db, clock)
	logRepo := repository.NewNotificationLogRepository(db, clock)
	notificationTemplateRepo := repository.NewNotificationTemplateRepository(db, clock)

	seedDefaultPipeline(templateRepo)

	emitter := engine.NewEmitter()
	instanceManager := engine.NewInstanceManager(workflowRepo, stateRecordRepo, historyRepo, templateRepo, emitter, clock)
	policy := engine.ConflictPolicy(config.GetSystemSettingString(config.INTERVIEW_CONFLICT_POLICY))
	interviewManager := engine.NewInterviewManager(interviewRepo, workflowRepo, historyRepo, emitter, clock, policy)

	dispatcher := notify.NewDispatcher(
		&notify.EmailSender{
			Addr: config.GetSystemSettingString(config.SMTP_ADDR),
			From: config.GetSystemSettingString(config.SMTP_FROM),
		},
		&notify.HTTPProviderSender{
			ChannelName: domain.ChannelSMS,
			URL:         config.GetSystemSettingString(config.SMS_PROVIDER_URL),
			Provider:    "sms",
		},
		&notify.HTTPProviderSender{
			ChannelName: domain.ChannelPush,
			URL:         config.GetSystemSettingString(config.PUSH_PROVIDER_URL),
			Provider:    "push",
		},
		&notify.ChatSender{
			URL: config.GetSystemSettingString(config.CHAT_WEBHOOK_URL),
		},
		&notify.WebhookSender{
			Secret: config.GetSystemSettingString(config.WEBHOOK_SIGNING_SECRET),
		},
	)

	sweepInterval, _ := time.ParseDuration(config.GetSystemSettingString(config.NOTIFY_SWEEP_INTERVAL))
	queue := notify.NewDeliveryQueue(notificationRepo, preferenceRepo, logRepo, dispatcher, clock, notify.QueueSettings{
		SweepInterval:     sweepInterval,
		BatchSize:         config.GetSystemSettingInteger(config.NOTIFY_BATCH_SIZE),
		WorkersPerChannel: config.GetSystemSettingInteger(config.NOTIFY_CHANNEL_WORKERS),
		RetryBase:         time.Duration(config.GetSystemSettingInteger(config.NOTIFY_RETRY_BASE_SECONDS)) * time.Second,
		RetryCap:          time.Duration(config.GetSystemSettingInteger(config.NOTIFY_RETRY_CAP_SECONDS)) * time.Second,
		DefaultMaxRetries: config.GetSystemSettingInteger(config.NOTIFY_DEFAULT_MAX_RETRIES),
	})

	orch := orchestrator.New(instanceManager, interviewManager, queue,
		notificationRepo, preferenceRepo, logRepo, notificationTemplateRepo, clock,
		config.GetSystemSettingInteger(config.NOTIFY_DEFAULT_MAX_RETRIES))
	if err := orch.SeedTemplates(); err != nil {
		slog.Error("Failed to seed notification templates", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queue.Start(ctx)
	go orch.ConsumeEvents(ctx, emitter.Subscribe(256))

	if mux == nil {
		mux = http.NewServeMux()
	}
	controllers.NewWorkflowsController(orch).RegisterRoutes(mux)
	controllers.NewInterviewsController(orch).RegisterRoutes(mux)
	controllers.NewNotificationsController(orch).RegisterRoutes(mux)

	addr := ":" + config.GetSystemSettingString(config.SERVER_WEB_PORT)
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

// seedDefaultPipeline installs the built-in hiring pipeline template if it is
// not present yet. Existing versions are never touched.
func seedDefaultPipeline(templates *repository.PipelineTemplateRepository) {
	if _, err := templates.FindLatestByName(engine.DefaultTemplateName); err == nil {
		return
	}
	t := engine.DefaultTemplate()
	if _, err := templates.Save(t); err != nil {
		slog.Error("Failed to seed default pipeline template", "error", err)
		os.Exit(1)
	}
	slog.Info("Seeded default pipeline template", "name", t.Name, "version", t.Version)
}

func setupPostgresDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("HFLOW_DATABASE_URL must be set when using the POSTGRES database type")
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
		panic("HFLOW_DATABASE_SQLLITE_FILE_NAME must be set")
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
		panic("HFLOW_DATABASE_URL must be set when using the MYSQL database type")
	}
	if !strings.Contains(dbURL, "parseTime=true") {
		panic("HFLOW_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	if !strings.HasPrefix(dbURL, "mysql://") {
		panic("HFLOW_DATABASE_URL must start with 'mysql://' for MySQL")
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
