package main

import (
	"github.com/huangang/projecthub/backend/internal/config"
	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/services"
	"github.com/huangang/projecthub/backend/internal/utils"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/logger"
)

// appServices holds all initialized services needed by the application.
type appServices struct {
	users        *services.UserService
	submissions  *services.SubmissionService
	taskQueue    services.TaskQueue
	worker       *services.Worker
	logScheduler *services.LogCleanupScheduler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database, cfg.Log.Level); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	services.InitSystemLogger(db)

	logScheduler := services.NewLogCleanupScheduler(db, cfg.SystemLog.RetentionDays)
	if err := logScheduler.Start(cfg.SystemLog.CleanupCron); err != nil {
		logger.Warn().Err(err).Str("cron", cfg.SystemLog.CleanupCron).Msg("Failed to start log cleanup scheduler")
		logScheduler = nil
	}

	timeout := cfg.SideEffectTimeout()
	store := services.NewSubmissionStore(db)
	dispatcher := services.NewDispatcher(
		store,
		services.NewNotifier(cfg),
		services.NewRegistrar(cfg.Registrar, timeout),
		cfg.App.FrontendURL,
		timeout,
	)

	// Redis enabled: side effects run on the asynq worker; otherwise inline after commit
	taskQueue := services.InitTaskQueue(cfg, dispatcher.Process)

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(dispatcher.Process)
			if err := worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start worker")
			}
		}
	}

	users := services.NewUserService(db)
	if cfg.Registrar.URL == "" {
		logger.Warn().Msg("No registrar URL configured, approved projects will not be registered externally")
	}
	logger.Info().
		Str("project_dashboard", dispatcher.DashboardLink(workflow.KindProject)).
		Str("workshop_dashboard", dispatcher.DashboardLink(workflow.KindWorkshop)).
		Msg("Side-effect dispatcher ready")

	return &appServices{
		users:        users,
		submissions:  services.NewSubmissionService(store, users, taskQueue),
		taskQueue:    taskQueue,
		worker:       worker,
		logScheduler: logScheduler,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	if s.logScheduler != nil {
		s.logScheduler.Stop()
	}
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
