package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/uni-plan/timetable-api/api/swagger"
	"github.com/uni-plan/timetable-api/internal/handler"
	"github.com/uni-plan/timetable-api/internal/middleware"
	"github.com/uni-plan/timetable-api/internal/models"
	"github.com/uni-plan/timetable-api/internal/repository"
	"github.com/uni-plan/timetable-api/internal/service"
	"github.com/uni-plan/timetable-api/pkg/cache"
	"github.com/uni-plan/timetable-api/pkg/config"
	"github.com/uni-plan/timetable-api/pkg/database"
	"github.com/uni-plan/timetable-api/pkg/jobs"
	"github.com/uni-plan/timetable-api/pkg/logger"
	corsmiddleware "github.com/uni-plan/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uni-plan/timetable-api/pkg/middleware/requestid"
	"github.com/uni-plan/timetable-api/pkg/storage"
)

// @title Timetable API
// @version 1.0.0
// @description University timetable scheduling service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	timetableRepo := repository.NewTimetableRepository(db)
	entryRepo := repository.NewScheduleEntryRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	lecturerRepo := repository.NewLecturerRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	exportRepo := repository.NewExportRepository(db)

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	// Services.
	metricsSvc := service.NewMetricsService()
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, true)
	}
	conflictSvc := service.NewConflictService(entryRepo, timetableRepo, metricsSvc, logr)
	entrySvc := service.NewScheduleEntryService(entryRepo, timetableRepo, conflictSvc,
		subjectRepo, lecturerRepo, roomRepo, groupRepo, cacheSvc, nil, logr, cfg.Scheduling.SlotMinutes)
	timetableSvc := service.NewTimetableService(timetableRepo, curriculumRepo, semesterRepo, cacheSvc, nil, logr)
	curriculumSvc := service.NewCurriculumService(curriculumRepo, subjectRepo, lecturerRepo,
		entryRepo, timetableRepo, cacheSvc, logr, cfg.Scheduling.BlockHours)
	calendarSvc := service.NewCalendarService(semesterRepo, cacheSvc, nil, logr, cfg.Scheduling)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, entryRepo, lecturerRepo, nil, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret)

	var exportSvc *service.ExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

		exportQueue = jobs.NewQueue("exports", func(ctx context.Context, job jobs.Job) error {
			return exportSvc.HandleJob(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc = service.NewExportService(exportRepo, timetableRepo, entryRepo,
			exportQueue, store, signer, logr, cfg.Scheduling.OnlineMinutes)
		exportQueue.Start(ctx)
		defer exportQueue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					deleted, err := store.CleanupOlderThan(cfg.Exports.SignedURLTTL)
					if err != nil {
						logr.Sugar().Warnw("export cleanup failed", "error", err)
					} else if len(deleted) > 0 {
						logr.Sugar().Infow("export artifacts cleaned", "count", len(deleted))
					}
				}
			}
		}()
	}

	// Handlers.
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	entryHandler := handler.NewScheduleEntryHandler(entrySvc)
	curriculumHandler := handler.NewCurriculumHandler(curriculumSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))

	read := middleware.RBAC(models.RoleAdmin, models.RolePlanner, models.RoleViewer)
	write := middleware.RBAC(models.RoleAdmin, models.RolePlanner)

	api.GET("/timetables", read, timetableHandler.List)
	api.GET("/timetables/:id", read, timetableHandler.Get)
	api.GET("/timetables/:id/entries", read, entryHandler.ListByTimetable)
	api.GET("/timetables/:id/pool", read, curriculumHandler.Pool)
	api.POST("/timetables", write, middleware.Audit(auditRepo, "create", "timetable"), timetableHandler.Create)
	api.PUT("/timetables/:id", write, middleware.Audit(auditRepo, "update", "timetable"), timetableHandler.Update)
	api.PUT("/timetables/:id/status", write, middleware.Audit(auditRepo, "status", "timetable"), timetableHandler.UpdateStatus)
	api.POST("/timetables/:id/copy", write, middleware.Audit(auditRepo, "copy", "timetable"), timetableHandler.Copy)
	api.DELETE("/timetables/:id", write, middleware.Audit(auditRepo, "delete", "timetable"), timetableHandler.Delete)

	api.POST("/entries", write, middleware.Audit(auditRepo, "place", "schedule_entry"), entryHandler.Create)
	api.PUT("/entries/:id", write, middleware.Audit(auditRepo, "move", "schedule_entry"), entryHandler.Update)
	api.DELETE("/entries/:id", write, middleware.Audit(auditRepo, "delete", "schedule_entry"), entryHandler.Delete)

	api.GET("/curricula/:id/semesters/:semesterId/subjects", read, curriculumHandler.Resolve)

	api.GET("/calendar/grid", read, calendarHandler.Grid)
	api.GET("/semesters/:id/blocks", read, calendarHandler.SessionBlocks)
	api.GET("/semesters/:id/dates", read, calendarHandler.ListDates)
	api.PUT("/semesters/:id/dates", write, middleware.Audit(auditRepo, "replace_dates", "semester"), calendarHandler.ReplaceDates)

	api.GET("/lecturers/:id/entries", read, entryHandler.ListByLecturer)
	api.GET("/lecturers/:id/availability", read, availabilityHandler.Overlay)
	api.PUT("/lecturers/:id/availability", write, middleware.Audit(auditRepo, "replace_availability", "lecturer"), availabilityHandler.Replace)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		api.POST("/timetables/:id/exports", write, middleware.Audit(auditRepo, "export", "timetable"), exportHandler.Create)
		api.GET("/exports/:id", read, exportHandler.Get)
		api.GET("/exports/:id/url", read, exportHandler.DownloadURL)
		// Token-authenticated, no session required.
		r.GET("/downloads/exports", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
